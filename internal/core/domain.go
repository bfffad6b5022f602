package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the canonical snapshot date format.
const DateLayout = "2006-01-02"

type (
	// Date identifies one stored snapshot.
	Date struct {
		time.Time
	}

	// Snapshot is one uploaded portfolio file as stored.
	Snapshot struct {
		Date       Date
		Filename   string
		Content    []byte
		UploadedAt time.Time
	}
)

var (
	ErrInvalidDate    = errors.New("invalid snapshot date")
	ErrEmptyContent   = errors.New("empty snapshot content")
	ErrEmptyFilename  = errors.New("empty snapshot filename")
	ErrFilenameLength = errors.New("filename too long (max 255 characters)")
)

// ParseDate parses a YYYY-MM-DD snapshot date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date in storage form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// InMonth reports whether d falls in the given calendar month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

func (s Snapshot) Validate() error {
	if err := s.Date.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(s.Filename)
	if name == "" {
		return ErrEmptyFilename
	}
	if len(name) > 255 {
		return ErrFilenameLength
	}
	if len(s.Content) == 0 {
		return ErrEmptyContent
	}
	return nil
}
