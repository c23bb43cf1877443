package pipeline

import "context"

// Project is the pipeline's view of a target site owned by a client.
type Project struct {
	ID          string
	ClientID    string
	Name        string
	SiteURL     string
	CMSUsername string
	CMSPassword string
	ToneProfile string
	Language    string
}

// Target carries the credentials the publisher needs for one site.
type Target struct {
	BaseURL  string
	Username string
	Password string
}

// Page is one sitemap entry used as an internal-link candidate.
type Page struct {
	URL   string
	Title string
}

// AffiliateLink is read-mostly shared data; UsageCount is the rotation
// tie-break maintained by the link store.
type AffiliateLink struct {
	ID         string
	URL        string
	AnchorText string
	Keywords   []string
	UsageCount int
}

// PostInput is the payload for a CMS create or update call.
type PostInput struct {
	Title           string
	Content         string
	Excerpt         string
	Status          string
	MetaTitle       string
	MetaDescription string
	FocusKeyword    string
	FeaturedMediaID int64
}

// PostRef identifies a post on the remote CMS.
type PostRef struct {
	ID  int64
	URL string
}

// RemotePost is an existing post fetched for rewrite jobs.
type RemotePost struct {
	ID      int64
	Title   string
	Content string
	URL     string
}

// ProjectStore loads target records. Implemented by the service storage layers.
type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*Project, error)
}

// Generator is the opaque text/image generation capability.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateImage returns a URL to the produced image.
	GenerateImage(ctx context.Context, prompt string) (string, error)
	// RankPages returns up to topK pages ordered by relevance to the keywords.
	RankPages(ctx context.Context, keywords []string, pages []Page, topK int) ([]Page, error)
}

// Publisher talks to one target CMS. Constructed per job via PublisherFactory
// since credentials differ per project.
type Publisher interface {
	// Probe verifies the target is reachable and is the expected platform.
	Probe(ctx context.Context) error
	FetchPost(ctx context.Context, postID int64) (*RemotePost, error)
	CreatePost(ctx context.Context, input PostInput) (*PostRef, error)
	UpdatePost(ctx context.Context, postID int64, input PostInput) (*PostRef, error)
	// UploadMedia fetches the image at imageURL and re-posts it as an
	// attachment, returning the remote media id and URL.
	UploadMedia(ctx context.Context, imageURL string) (int64, string, error)
}

// PublisherFactory builds a publisher bound to one target's credentials.
type PublisherFactory func(target Target) Publisher

// SitemapFetcher produces a point-in-time snapshot of a site's pages.
type SitemapFetcher interface {
	Fetch(ctx context.Context, siteURL string) ([]Page, error)
}

// AffiliateSource provides affiliate links for a project and records usage.
type AffiliateSource interface {
	ForProject(ctx context.Context, projectID string) ([]AffiliateLink, error)
	IncrementUsage(ctx context.Context, linkID string) error
}

// CreditLedger is the pipeline's view of the credit system. Debit must
// atomically re-validate sufficiency; a stale Check result never authorizes
// a debit on its own.
type CreditLedger interface {
	Check(ctx context.Context, clientID string, cost float64) (available float64, unlimited bool, err error)
	Debit(ctx context.Context, clientID string, cost float64, description string) (remaining float64, unlimited bool, err error)
}

// Sanitizer rewrites disallowed vocabulary. It never fails.
type Sanitizer interface {
	Clean(text string) (string, bool)
}
