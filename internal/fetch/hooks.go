package fetch

// Hooks provide optional callbacks for persistence / external tracking.
// Manager invokes them synchronously from its workers so every update has
// landed by the time Run returns; implementations should be fast.
type Hooks interface {
	OnStateChange(dbID int64, state State, errMsg string)
	OnRemoteInfo(dbID int64, sizeBytes int64, etag string)
	OnResult(dbID int64, sizeBytes int64, sha256 string)
}
