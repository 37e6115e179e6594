package service

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// DayParser parses strings containing date template elements, like {{.YYYYMMDD}},
// and replaces all occurrences. Used to expand dated parent URLs and csv names.
type DayParser struct {
	timeZone    *time.Location
	tmpl        tmpl
	altTemplate bool
}

// tmpl used to translate templates with date info
type tmpl struct {
	YYYYMMDD string
	YYYY     string
	YYYYMM   string
	YYMMDD   string
	ISODATE  string
	MM       string
	DD       string
	YY       string

	UNIX     int64
	UNIXMSEC int64
}

// NewDayTemplate makes day parser for given date
func NewDayTemplate(ts time.Time, options ...Option) *DayParser {
	res := &DayParser{
		timeZone:    time.Local,
		altTemplate: false,
	}

	for _, opt := range options {
		opt(res)
	}

	tsMidnight := res.toMidnight(ts)
	res.tmpl = tmpl{
		YYYYMMDD: tsMidnight.Format("20060102"),
		YYYY:     tsMidnight.Format("2006"),
		YYYYMM:   tsMidnight.Format("200601"),
		YYMMDD:   tsMidnight.Format("060102"),
		ISODATE:  tsMidnight.Format("2006-01-02T00:00:00.000Z"),
		YY:       tsMidnight.Format("06"),
		MM:       tsMidnight.Format("01"),
		DD:       tsMidnight.Format("02"),

		UNIX:     ts.Unix(),
		UNIXMSEC: ts.UnixNano() / 1000000,
	}

	return res
}

// Parse translate template to final string
func (p DayParser) Parse(dayTemplate string) (string, error) {
	b1 := bytes.Buffer{}
	tmpl := template.New("ymd")
	if p.altTemplate {
		tmpl = tmpl.Delims("[[", "]]")
	}
	t, err := tmpl.Parse(dayTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse day template %s: %w", dayTemplate, err)
	}
	if err := t.Execute(&b1, p.tmpl); err != nil {
		return "", fmt.Errorf("failed to parse day from %s: %w", dayTemplate, err)
	}
	return b1.String(), nil
}

// toMidnight get midnight time in local tz for given time
func (p DayParser) toMidnight(tm time.Time) time.Time {
	yy, mm, dd := tm.In(p.timeZone).Date()
	return time.Date(yy, mm, dd, 0, 0, 0, 0, p.timeZone)
}

// Option func type
type Option func(l *DayParser)

// TimeZone sets timezone used for all time parsings
func TimeZone(tz *time.Location) Option {
	return func(l *DayParser) {
		l.timeZone = tz
	}
}

// AltTemplateFormat sets alternative template format with [[.YYYYMMDD]] instead of {{.YYYYMMDD}}
func AltTemplateFormat(enabled bool) Option {
	return func(l *DayParser) {
		l.altTemplate = enabled
	}
}
