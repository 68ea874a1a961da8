package record

import (
	"database/sql"

	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
)

// row mirrors one conversations row.
type row struct {
	ID        int64          `db:"id"`
	RawText   string         `db:"raw_text"`
	DriverTag sql.NullString `db:"driver_tag"`
	ManualTag sql.NullString `db:"manual_tag"`
	Status    string         `db:"status"`
	BatchID   sql.NullInt64  `db:"batch_id"`
}

func (r row) toDomain() domrec.Record {
	return domrec.Record{
		ID:        r.ID,
		Text:      r.RawText,
		Tags:      domrec.ParseTags(r.ManualTag.String),
		PriorTags: domrec.ParseTags(r.DriverTag.String),
		Status:    domrec.Status(r.Status),
		BatchID:   r.BatchID.Int64,
	}
}
