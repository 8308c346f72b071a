// Package localtime converts between the UTC frame kept by the hardware clock
// and local wall-clock time, using one fixed POSIX-style DST rule instead of
// a timezone database.
package localtime

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput is returned when DateTime fields are out of calendar range.
	ErrInvalidInput = errors.New("localtime: invalid date/time")

	// ErrConversion is returned when a valid DateTime cannot be converted.
	ErrConversion = errors.New("localtime: conversion failed")

	// ErrFrame is returned when a value in the wrong frame is passed to a conversion.
	ErrFrame = errors.New("localtime: wrong time frame")

	// ErrNonexistent is returned by ToUTC for wall-clock times skipped by the
	// spring-forward transition.
	ErrNonexistent = errors.New("localtime: local time does not exist")
)

// MinYear is the earliest year accepted by Validate.
const MinYear = 2000

// Frame tags a DateTime as UTC or local wall-clock time.
type Frame uint8

const (
	UTC Frame = iota
	Local
)

func (f Frame) String() string {
	if f == Local {
		return "local"
	}
	return "UTC"
}

// DateTime is a calendar date and time of day in a given frame.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	Frame  Frame
}

// FromTime returns the UTC DateTime for the instant t.
func FromTime(t time.Time) DateTime {
	return fromTime(t.UTC(), UTC)
}

func fromTime(t time.Time, f Frame) DateTime {
	return DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
		Frame:  f,
	}
}

// Time returns the fields as a time.Time in the time.UTC location.
// For a UTC DateTime this is the instant itself; for a Local one it is the
// wall clock reading with no zone attached.
func (d DateTime) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

func (d DateTime) unix() int64 {
	return d.Time().Unix()
}

func fromUnix(sec int64, f Frame) DateTime {
	return fromTime(time.Unix(sec, 0).UTC(), f)
}

// SecondsIntoHour returns minute*60 + second.
func (d DateTime) SecondsIntoHour() int {
	return d.Minute*60 + d.Second
}

// Validate reports ErrInvalidInput if any field is out of calendar range.
func (d DateTime) Validate() error {
	switch {
	case d.Year < MinYear:
		return fmt.Errorf("%w: year %d before %d", ErrInvalidInput, d.Year, MinYear)
	case d.Month < 1 || d.Month > 12:
		return fmt.Errorf("%w: month %d", ErrInvalidInput, d.Month)
	case d.Day < 1 || d.Day > DaysIn(d.Year, d.Month):
		return fmt.Errorf("%w: day %d of %04d-%02d", ErrInvalidInput, d.Day, d.Year, d.Month)
	case d.Hour < 0 || d.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidInput, d.Hour)
	case d.Minute < 0 || d.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrInvalidInput, d.Minute)
	case d.Second < 0 || d.Second > 59:
		return fmt.Errorf("%w: second %d", ErrInvalidInput, d.Second)
	}
	return nil
}

// String formats the value as "2006-01-02 15:04:05 <frame>".
func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d %s",
		d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, d.Frame)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
