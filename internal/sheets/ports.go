package sheets

import "context"

// Ports for outbound adapters.
type (
	// SnapshotSource exports a spreadsheet range in the CSV form the
	// snapshot parser accepts.
	SnapshotSource interface {
		ExportCSV(ctx context.Context, rangeA1 string) ([]byte, error)
	}
)
