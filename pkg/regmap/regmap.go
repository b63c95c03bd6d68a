// Package regmap turns an extracted register bit-assignment table into
// packed-struct field declarations.
//
// The first row of the table is a header naming the Bits, Name and Function
// columns, and optionally Type. Every following row with more than one cell
// describes one field.
package regmap

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tabcopy/pkg/errors"
	"tabcopy/pkg/models"
)

const (
	ColumnBits     = "Bits"
	ColumnName     = "Name"
	ColumnType     = "Type"
	ColumnFunction = "Function"

	DefaultAccess = "RW"
)

// maxBit is the highest bit of the widest supported register.
const maxBit = 31

var bitPattern = regexp.MustCompile(`^\[(?:(\d+)|(\d+):(\d+))\]$`)

// Field is one bit field of a register.
type Field struct {
	Offset      int
	Size        int
	Name        string
	Access      string
	Description string
}

// High returns the most significant bit of the field.
func (f Field) High() int {
	return f.Offset + f.Size - 1
}

// Map is a parsed register, fields ordered by offset.
type Map struct {
	Fields []Field
}

// Width returns the register size in bits.
func (m *Map) Width() int {
	if len(m.Fields) == 0 {
		return 0
	}
	last := m.Fields[len(m.Fields)-1]
	return last.Offset + last.Size
}

type columns struct {
	bits, name, function int
	access               int // -1 when the table has no Type column
}

// Parse reads fields from an extraction result. It fails when the header
// lacks a required column, a Bits cell is malformed, the fields do not
// tile the register without gaps, or the register is not 8, 16 or 32 bits
// wide.
func Parse(r models.ExtractionResult) (*Map, error) {
	if len(r.Rows) == 0 {
		return nil, errors.ValidationError("table is empty, expected a header row")
	}

	cols, err := headerColumns(r.Rows[0].Cells)
	if err != nil {
		return nil, err
	}
	need := max(cols.bits, cols.name, cols.function, cols.access) + 1

	m := &Map{}
	reserved := 0
	for i, row := range r.Rows[1:] {
		rowNum := i + 1
		cells := row.Cells
		if len(cells) <= 1 {
			continue
		}
		if len(cells) < need {
			return nil, errors.ValidationError(fmt.Sprintf("row %d has %d cells, expected at least %d", rowNum, len(cells), need))
		}

		low, high, err := parseBits(cells[cols.bits])
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("row %d: %v", rowNum, err))
		}

		name := strings.TrimSpace(cells[cols.name])
		if name == "-" {
			name = fmt.Sprintf("_reserved%d", reserved)
			reserved++
		}

		access := DefaultAccess
		if cols.access >= 0 {
			access = strings.ToUpper(strings.TrimSpace(cells[cols.access]))
		}

		m.Fields = append(m.Fields, Field{
			Offset:      low,
			Size:        high - low + 1,
			Name:        name,
			Access:      access,
			Description: cells[cols.function],
		})
	}

	if len(m.Fields) == 0 {
		return nil, errors.ValidationError("table has no field rows")
	}

	sort.SliceStable(m.Fields, func(a, b int) bool {
		return m.Fields[a].Offset < m.Fields[b].Offset
	})

	for i := 0; i+1 < len(m.Fields); i++ {
		cur, next := m.Fields[i], m.Fields[i+1]
		if next.Offset != cur.Offset+cur.Size {
			return nil, errors.ValidationError(fmt.Sprintf("fields %s [%d/%d] and %s [%d/%d] are not contiguous",
				cur.Name, cur.Offset, cur.Size, next.Name, next.Offset, next.Size))
		}
	}

	switch w := m.Width(); w {
	case 8, 16, 32:
	default:
		return nil, errors.ValidationError(fmt.Sprintf("register width is %d bits, expected 8, 16 or 32", w))
	}

	return m, nil
}

func headerColumns(header []string) (columns, error) {
	cols := columns{bits: -1, name: -1, function: -1, access: -1}
	for i, cell := range header {
		switch strings.TrimSpace(cell) {
		case ColumnBits:
			if cols.bits < 0 {
				cols.bits = i
			}
		case ColumnName:
			if cols.name < 0 {
				cols.name = i
			}
		case ColumnFunction:
			if cols.function < 0 {
				cols.function = i
			}
		case ColumnType:
			if cols.access < 0 {
				cols.access = i
			}
		}
	}

	var missing []string
	if cols.bits < 0 {
		missing = append(missing, ColumnBits)
	}
	if cols.name < 0 {
		missing = append(missing, ColumnName)
	}
	if cols.function < 0 {
		missing = append(missing, ColumnFunction)
	}
	if len(missing) > 0 {
		return cols, errors.NewWithSuggestion(errors.ExitCodeValidation,
			fmt.Sprintf("header row is missing column(s): %s", strings.Join(missing, ", ")),
			"Copy a bit assignment table whose header has Bits, Name and Function columns.")
	}
	return cols, nil
}

func parseBits(s string) (low, high int, err error) {
	m := bitPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("bits %q must look like [n] or [hi:lo]", s)
	}
	if m[1] != "" {
		if low, err = bitNumber(s, m[1]); err != nil {
			return 0, 0, err
		}
		return low, low, nil
	}
	if high, err = bitNumber(s, m[2]); err != nil {
		return 0, 0, err
	}
	if low, err = bitNumber(s, m[3]); err != nil {
		return 0, 0, err
	}
	if high < low {
		return 0, 0, fmt.Errorf("bits %q has high bit below low bit", s)
	}
	return low, high, nil
}

// bitNumber parses one bit position of the Bits cell s.
func bitNumber(s, digits string) (int, error) {
	n, err := strconv.Atoi(digits)
	if err != nil || n > maxBit {
		return 0, fmt.Errorf("bits %q: bit %s is outside a %d-bit register", s, digits, maxBit+1)
	}
	return n, nil
}

// Write emits one declaration per field, lowest offset first, each preceded
// by its description as /// comment lines and followed by a blank line.
func (m *Map) Write(w io.Writer) error {
	var sb strings.Builder
	for _, f := range m.Fields {
		for _, line := range strings.Split(f.Description, "\n") {
			line = strings.TrimSuffix(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			sb.WriteString("/// " + strings.TrimRight(line, " \t") + "\n")
		}

		bits := strconv.Itoa(f.Offset)
		if f.Size > 1 {
			bits = fmt.Sprintf("%d:%d", f.High(), f.Offset)
		}
		fmt.Fprintf(&sb, "%s: u%d, // [%s], %s\n\n", f.Name, f.Size, bits, f.Access)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Generate parses r and writes the declarations to w.
func Generate(w io.Writer, r models.ExtractionResult) error {
	m, err := Parse(r)
	if err != nil {
		return err
	}
	return m.Write(w)
}
