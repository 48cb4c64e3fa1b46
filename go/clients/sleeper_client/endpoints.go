package sleeper_client

const (
	BaseURL = "https://api.sleeper.app"

	leagueDraftsPath = "/v1/league/%s/drafts"
	draftPath        = "/v1/draft/%s"
	draftPicksPath   = "/v1/draft/%s/picks"

	AuthHeader      = "Authorization"
	JsonHeader      = "Accept"
	JsonContentType = "application/json"
)

// Draft statuses as Sleeper reports them.
const (
	statusPreDraft = "pre_draft"
	statusDrafting = "drafting"
	statusPaused   = "paused"
	statusComplete = "complete"
)
