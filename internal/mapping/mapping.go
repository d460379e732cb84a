// Package mapping turns a CSV header row into an editable column mapping used
// to build the bulk inference input template.
package mapping

import (
	"fmt"
	"strings"

	"github.com/cuongbtq/coursehub/internal/domain"
)

// CustomColumn is the source and display name of a row added by hand
const CustomColumn = "Custom Column"

// Row pairs a source CSV column with the name used in the input template
type Row struct {
	ID           int    `json:"id"`
	SourceColumn string `json:"column_name"`
	DisplayName  string `json:"custom_name"`
	IsKey        bool   `json:"is_primary_key"`
}

// Mapping is an ordered set of rows with at most one key row.
// It is not safe for concurrent use.
type Mapping struct {
	rows   []Row
	nextID int
}

// New creates a mapping with one row per column, in column order
func New(columns []string) *Mapping {
	m := &Mapping{rows: make([]Row, 0, len(columns)), nextID: 1}
	for _, col := range columns {
		m.rows = append(m.rows, Row{
			ID:           m.nextID,
			SourceColumn: col,
			DisplayName:  col,
		})
		m.nextID++
	}
	return m
}

// FromRows rebuilds a mapping edited by a client. Row ids are kept; rows
// without an id get a fresh one. More than one key row is rejected.
func FromRows(rows []Row) (*Mapping, error) {
	m := &Mapping{rows: make([]Row, 0, len(rows)), nextID: 1}
	seen := make(map[int]bool, len(rows))
	keys := 0

	for _, r := range rows {
		if r.ID > 0 {
			if seen[r.ID] {
				return nil, domain.NewError(domain.ErrValidation, fmt.Sprintf("duplicate row id %d", r.ID), nil)
			}
			seen[r.ID] = true
			if r.ID >= m.nextID {
				m.nextID = r.ID + 1
			}
		}
		if r.IsKey {
			keys++
		}
		m.rows = append(m.rows, r)
	}

	if keys > 1 {
		return nil, domain.NewError(domain.ErrValidation, "only one key column can be selected", nil)
	}

	for i := range m.rows {
		if m.rows[i].ID <= 0 {
			m.rows[i].ID = m.nextID
			m.nextID++
		}
	}

	return m, nil
}

// Rows returns a copy of the rows in display order
func (m *Mapping) Rows() []Row {
	out := make([]Row, len(m.rows))
	copy(out, m.rows)
	return out
}

// Len returns the number of rows
func (m *Mapping) Len() int {
	return len(m.rows)
}

func (m *Mapping) index(id int) (int, error) {
	for i, r := range m.rows {
		if r.ID == id {
			return i, nil
		}
	}
	return -1, domain.NewError(domain.ErrValidation, fmt.Sprintf("row %d does not exist", id), nil)
}

// SetKey marks row id as the key column and clears every other row
func (m *Mapping) SetKey(id int) error {
	if _, err := m.index(id); err != nil {
		return err
	}
	for i := range m.rows {
		m.rows[i].IsKey = m.rows[i].ID == id
	}
	return nil
}

// ToggleKey clears the key if row id already holds it, otherwise behaves like SetKey
func (m *Mapping) ToggleKey(id int) error {
	i, err := m.index(id)
	if err != nil {
		return err
	}
	if m.rows[i].IsKey {
		m.rows[i].IsKey = false
		return nil
	}
	return m.SetKey(id)
}

// Rename changes the display name of row id
func (m *Mapping) Rename(id int, displayName string) error {
	i, err := m.index(id)
	if err != nil {
		return err
	}
	m.rows[i].DisplayName = displayName
	return nil
}

// SetSource changes the source column of row id
func (m *Mapping) SetSource(id int, column string) error {
	i, err := m.index(id)
	if err != nil {
		return err
	}
	m.rows[i].SourceColumn = column
	return nil
}

// Add appends a custom row and returns it
func (m *Mapping) Add() Row {
	r := Row{ID: m.nextID, SourceColumn: CustomColumn, DisplayName: CustomColumn}
	m.nextID++
	m.rows = append(m.rows, r)
	return r
}

// Delete removes row id
func (m *Mapping) Delete(id int) error {
	i, err := m.index(id)
	if err != nil {
		return err
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

// Move removes the row at index from and reinserts it at index to.
// Rows in between shift by one. from == to is a no-op.
func (m *Mapping) Move(from, to int) error {
	n := len(m.rows)
	if from < 0 || from >= n || to < 0 || to >= n {
		return domain.NewError(domain.ErrValidation, fmt.Sprintf("cannot move row %d to %d in a mapping of %d rows", from, to, n), nil)
	}
	if from == to {
		return nil
	}

	r := m.rows[from]
	if from < to {
		copy(m.rows[from:to], m.rows[from+1:to+1])
	} else {
		copy(m.rows[to+1:from+1], m.rows[to:from])
	}
	m.rows[to] = r
	return nil
}

// KeyColumn returns the source column of the key row
func (m *Mapping) KeyColumn() (string, bool) {
	for _, r := range m.rows {
		if r.IsKey {
			return r.SourceColumn, true
		}
	}
	return "", false
}

// Validate checks the mapping is ready for submission
func (m *Mapping) Validate() error {
	if len(m.rows) == 0 {
		return domain.NewError(domain.ErrValidation, "mapping has no columns", nil)
	}
	if _, ok := m.KeyColumn(); !ok {
		return domain.NewError(domain.ErrValidation, domain.MsgMissingKeyColumn, nil)
	}
	return nil
}

// Template renders the input text template sent to the backend, one
// "<display>: {<source>}" line per row.
func (m *Mapping) Template() string {
	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		lines[i] = r.DisplayName + ": {" + r.SourceColumn + "}"
	}
	return strings.Join(lines, "\n")
}
