package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*GeneticsOverrides)(nil)
	_ driver.Valuer = GeneticsOverrides{}
	_ sql.Scanner   = (*AnalysisSummary)(nil)
	_ driver.Valuer = AnalysisSummary{}
)

// scanJSONB scans a JSONB database value into dest. It handles nil, []byte and
// string representations from different drivers.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

func valueJSONB(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner for reading JSONB from the database.
func (o *GeneticsOverrides) Scan(value any) error {
	return scanJSONB(o, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (o GeneticsOverrides) Value() (driver.Value, error) {
	return valueJSONB(o)
}

// Scan implements sql.Scanner for reading JSONB from the database.
func (a *AnalysisSummary) Scan(value any) error {
	return scanJSONB(a, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (a AnalysisSummary) Value() (driver.Value, error) {
	return valueJSONB(a)
}
