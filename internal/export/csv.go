// Package export writes ticket lists to CSV.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"callcenter/internal/api"
	"callcenter/internal/dates"
)

// bufferSize for buffered I/O (64KB)
const bufferSize = 64 * 1024

// Header is the first CSV row.
var Header = []string{
	"ID", "Ticket ID", "Name", "Mobile", "Role", "Query Type",
	"District", "Entry Type", "Status", "Unanswered", "Date",
}

// WriteCSV writes a header row and one row per ticket to w.
func WriteCSV(w io.Writer, tickets []api.Ticket) error {
	bw := bufio.NewWriterSize(w, bufferSize)
	writer := csv.NewWriter(bw)

	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, t := range tickets {
		if err := writer.Write(row(t)); err != nil {
			return fmt.Errorf("write ticket %s: %w", t.TicketID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func row(t api.Ticket) []string {
	unanswered := "No"
	if t.IsUnanswered {
		unanswered = "Yes"
	}
	return []string{
		strconv.FormatInt(int64(t.ID), 10),
		t.TicketID,
		t.UserName,
		string(t.Mobile),
		t.RoleName,
		t.QueryType,
		t.District,
		t.EntryType,
		t.Status,
		unanswered,
		dates.ParseDisplayDate(t.EntryDateTime),
	}
}

// SaveCSV writes tickets to the file at path, replacing it.
func SaveCSV(path string, tickets []api.Ticket) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, tickets); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
