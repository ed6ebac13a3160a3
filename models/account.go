package models

// AccountStatus is the remote account availability as reported by the
// record-store collaborator.
type AccountStatus int

const (
	AccountIndeterminate AccountStatus = iota
	AccountAvailable
	AccountNoAccount
	AccountRestricted
	AccountTemporarilyUnavailable
)

func (s AccountStatus) String() string {
	switch s {
	case AccountAvailable:
		return "available"
	case AccountNoAccount:
		return "no-account"
	case AccountRestricted:
		return "restricted"
	case AccountTemporarilyUnavailable:
		return "temporarily-unavailable"
	default:
		return "indeterminate"
	}
}
