package model

import (
	"fmt"
	"io"
	"strconv"
)

type Book struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Format Format `json:"format"`
}

type Format string

const (
	FormatKindle    Format = "KINDLE"
	FormatAudiobook Format = "AUDIOBOOK"
	FormatPaperback Format = "PAPERBACK"
	FormatHardcover Format = "HARDCOVER"
)

var AllFormat = []Format{
	FormatKindle,
	FormatAudiobook,
	FormatPaperback,
	FormatHardcover,
}

func (e Format) IsValid() bool {
	switch e {
	case FormatKindle, FormatAudiobook, FormatPaperback, FormatHardcover:
		return true
	}
	return false
}

func (e Format) String() string {
	return string(e)
}

func (e *Format) UnmarshalGQL(v interface{}) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("enums must be strings")
	}

	*e = Format(str)
	if !e.IsValid() {
		return fmt.Errorf("%s is not a valid Format", str)
	}
	return nil
}

func (e Format) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}
