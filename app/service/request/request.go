// Package request contains request types for run event handlers
package request

import (
	"time"

	"github.com/umputun/scrapn/app/web/enums"
)

// OnRunStart contains parameters for run start event
type OnRunStart struct {
	RunUUID     string
	BatchNumber string
	ParentURL   string
	CSVFilename string
	Links       int
	Event       enums.EventType
	StartTime   time.Time
}

// OnRunComplete contains parameters for run completion event
type OnRunComplete struct {
	RunUUID     string
	BatchNumber string
	ParentURL   string
	CSVFilename string
	Links       int
	Scraped     int
	ResultFile  string
	Event       enums.EventType
	StartTime   time.Time
	EndTime     time.Time
	Output      string
	Err         error
}
