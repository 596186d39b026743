package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"example.com/gymbooking/internal/domain"
)

type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch format {
	case "text", "json", "yaml":
		return &printer{format: format, w: w}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// print writes v as json or yaml, or calls text for the text format.
func (p *printer) print(v interface{}, text func(w io.Writer)) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	text(p.w)
	return nil
}

// message prints a one-line notice.
func (p *printer) message(msg string) error {
	return p.print(map[string]string{"message": msg}, func(w io.Writer) {
		fmt.Fprintln(w, msg)
	})
}

func writeClasses(w io.Writer, classes []domain.GymClass) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tCLASS\tDISCIPLINE\tLOCATION\tSEATS")
	for _, c := range classes {
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t%s\t%d/%d\n",
			c.ID, c.ClassDate, c.StartTime, c.EndTime, c.Name, c.Discipline, c.Location, c.CurrentCapacity, c.MaxCapacity)
	}
	_ = tw.Flush()
}

func writeClass(w io.Writer, c domain.GymClass) {
	fmt.Fprintf(w, "%s (%s)\n", c.Name, c.Discipline)
	fmt.Fprintf(w, "  id:        %s\n", c.ID)
	fmt.Fprintf(w, "  when:      %s %s %s-%s\n", c.Day, c.ClassDate, c.StartTime, c.EndTime)
	fmt.Fprintf(w, "  where:     %s\n", c.Location)
	if c.Instructor != nil {
		fmt.Fprintf(w, "  coach:     %s\n", *c.Instructor)
	}
	if c.DurationMin != nil {
		fmt.Fprintf(w, "  duration:  %d min\n", *c.DurationMin)
	}
	status := fmt.Sprintf("%d seats left", c.SeatsLeft())
	if c.Full() {
		status = "full"
	}
	fmt.Fprintf(w, "  capacity:  %d/%d (%s)\n", c.CurrentCapacity, c.MaxCapacity, status)
}

func writeReservations(w io.Writer, list []domain.Reservation) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No reservations.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCLASS\tDATE\tBOOKED\tATTENDED")
	for _, r := range list {
		name, date := r.ClassID, ""
		if r.Class != nil {
			name = r.Class.Name
			date = strings.TrimSpace(r.Class.ClassDate + " " + r.Class.StartTime)
		}
		attended := "-"
		if r.Attended() {
			attended = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, name, date, r.ReservationDate.Format(domain.DateLayout), attended)
	}
	_ = tw.Flush()
}
