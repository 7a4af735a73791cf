package models

// MutationProposal is the candidate prompt produced by a reflection call,
// held in memory while the session sits in the adapting stage. It is not
// persisted until the comparison stage accepts or rejects it, at which
// point it becomes a PromptVersion.
type MutationProposal struct {
	NewPrompt   string   `json:"new_prompt"`
	Explanation string   `json:"explanation"`
	Analysis    string   `json:"analysis"`
	Changes     []string `json:"changes"`

	// ParseFailed marks a proposal built from the fallback path: the
	// model reply did not match the expected reflection layout, so
	// NewPrompt carries the current prompt unchanged and RawReply keeps
	// the original reply for inspection.
	ParseFailed bool   `json:"parse_failed,omitempty"`
	RawReply    string `json:"raw_reply,omitempty"`
}
