package job

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Job mirrors the durable job hash. Timestamps are Unix milliseconds,
// matching the wire representation; zero means unset.
type Job struct {
	ID   string
	Name string
	Data string

	Priority     int64
	AttemptsMade int64
	Delay        int64

	ReturnValue  string
	FailedReason string
	ProcessedOn  int64
	FinishedOn   int64

	// ParentKey is the fully-qualified hash key of the parent job, empty
	// for root jobs. Parent carries the decoded parent reference.
	ParentKey string
	Parent    *ParentRef

	// DebounceID maps this job back to its debounce index entry.
	DebounceID string

	// Raw holds every hash field as returned by the store, including
	// opaque payload fields not modeled above.
	Raw map[string]string
}

// ParentRef is the encoded parent object stored in the job hash's
// "parent" field. Field names are part of the wire contract.
type ParentRef struct {
	ID                        string `json:"id"`
	QueueKey                  string `json:"queueKey"`
	FailParentOnFailure       bool   `json:"fpof,omitempty"`
	IgnoreDependencyOnFailure bool   `json:"idof,omitempty"`
}

// EncodeParentRef serializes a parent reference for the "parent" field.
func EncodeParentRef(p *ParentRef) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("conveyor/job: encode parent ref: %w", err)
	}
	return string(b), nil
}

// FromFields builds a Job from the flat field/value pairs a procedure
// returns for a fetched job (HGETALL order).
func FromFields(id string, fields []interface{}) (*Job, error) {
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("conveyor/job: odd field list length %d", len(fields))
	}
	raw := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		k, ok := fields[i].(string)
		if !ok {
			return nil, fmt.Errorf("conveyor/job: non-string field name %T", fields[i])
		}
		v, ok := fields[i+1].(string)
		if !ok {
			return nil, fmt.Errorf("conveyor/job: non-string value for field %q", k)
		}
		raw[k] = v
	}
	return FromHash(id, raw)
}

// FromHash builds a Job from a job hash as returned by HGETALL.
func FromHash(id string, raw map[string]string) (*Job, error) {
	j := &Job{
		ID:           id,
		Name:         raw["name"],
		Data:         raw["data"],
		ReturnValue:  raw["returnvalue"],
		FailedReason: raw["failedReason"],
		ParentKey:    raw["parentKey"],
		DebounceID:   raw["deid"],
		Raw:          raw,
	}

	j.Priority, _ = strconv.ParseInt(raw["priority"], 10, 64)       //nolint:errcheck // best-effort parse from trusted store data
	j.AttemptsMade, _ = strconv.ParseInt(raw["atm"], 10, 64)        //nolint:errcheck // best-effort parse from trusted store data
	j.Delay, _ = strconv.ParseInt(raw["delay"], 10, 64)             //nolint:errcheck // best-effort parse from trusted store data
	j.ProcessedOn, _ = strconv.ParseInt(raw["processedOn"], 10, 64) //nolint:errcheck // best-effort parse from trusted store data
	j.FinishedOn, _ = strconv.ParseInt(raw["finishedOn"], 10, 64)   //nolint:errcheck // best-effort parse from trusted store data

	if encoded := raw["parent"]; encoded != "" {
		var p ParentRef
		if err := json.Unmarshal([]byte(encoded), &p); err != nil {
			return nil, fmt.Errorf("conveyor/job: decode parent ref: %w", err)
		}
		j.Parent = &p
	}
	return j, nil
}
