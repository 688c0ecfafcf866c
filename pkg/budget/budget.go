package budget

import (
	"time"

	"github.com/obrafin/obrafin/pkg/snapshot"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Budget is the per-project budget. Draft is the live, mutable snapshot; it is nil until the
// first save. CurrentVersion is the number of the latest published version, 0 before the
// first publish.
type Budget struct {
	Id             int
	TenantId       int
	ProjectId      int
	Status         Status
	CurrentVersion int
	Draft          *snapshot.Snapshot
	DraftRevision  int
	Created        time.Time
	Updated        time.Time
}

// Version is an immutable, numbered copy of a published snapshot.
type Version struct {
	Id       int
	BudgetId int
	Number   int
	Snapshot snapshot.Snapshot
	Created  time.Time
}
