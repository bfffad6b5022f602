package storage

import "time"

type Snapshot struct {
	Date       string
	Filename   string
	Content    []byte
	UploadedAt time.Time
}

type ReportCache struct {
	ID         string
	DateOld    string
	DateNew    string
	ResultJson string
	CreatedAt  time.Time
}
