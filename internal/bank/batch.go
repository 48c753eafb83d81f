package bank

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rcliao/remem/internal/model"
)

// Operation is one item of a batch. Args are loosely typed so batches can be
// decoded from JSON; mistyped arguments fail that item only.
//
//	add:     {"entry": {...}} or {"x": .., "y": .., "feedback": .., "tag": ..}
//	delete:  {"indices": [i, ...]}
//	merge:   {"index1": i, "index2": j}
//	relabel: {"index": i, "tag": "t"}
type Operation struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
}

// AddOp builds an add operation.
func AddOp(e *model.Entry) Operation {
	return Operation{Type: "add", Args: map[string]any{"entry": e}}
}

// DeleteOp builds a delete operation.
func DeleteOp(indices ...int) Operation {
	return Operation{Type: "delete", Args: map[string]any{"indices": indices}}
}

// MergeOp builds a merge operation.
func MergeOp(i, j int) Operation {
	return Operation{Type: "merge", Args: map[string]any{"index1": i, "index2": j}}
}

// RelabelOp builds a relabel operation.
func RelabelOp(idx int, tag string) Operation {
	return Operation{Type: "relabel", Args: map[string]any{"index": idx, "tag": tag}}
}

// OperationError reports a failed batch item.
type OperationError struct {
	OperationIndex int    `json:"operation_index"`
	Operation      string `json:"operation"`
	Error          string `json:"error"`
}

// BatchResult summarizes a best-effort batch.
type BatchResult struct {
	Total      int              `json:"total_operations"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Errors     []OperationError `json:"errors"`
}

func (r *BatchResult) add(i int, op string, err error) {
	r.Total++
	if err == nil {
		r.Successful++
		return
	}
	r.Failed++
	r.Errors = append(r.Errors, OperationError{OperationIndex: i, Operation: op, Error: err.Error()})
}

// BatchOperations runs ops in order against the progressively mutated bank,
// continuing past failures.
func (b *Bank) BatchOperations(ops []Operation) BatchResult {
	res := BatchResult{Errors: []OperationError{}}
	for i, op := range ops {
		res.add(i, op.Type, b.apply(op))
	}
	b.logger.Debug("batch applied", "total", res.Total, "failed", res.Failed)
	return res
}

func (b *Bank) apply(op Operation) error {
	switch op.Type {
	case "add":
		e, err := entryArg(op.Args)
		if err != nil {
			return err
		}
		return b.Add(e)
	case "delete":
		indices, err := intsArg(op.Args, "indices")
		if err != nil {
			return err
		}
		return b.Delete(indices)
	case "merge":
		i, err := intArg(op.Args, "index1")
		if err != nil {
			return err
		}
		j, err := intArg(op.Args, "index2")
		if err != nil {
			return err
		}
		return b.Merge(i, j)
	case "relabel":
		idx, err := intArg(op.Args, "index")
		if err != nil {
			return err
		}
		tag, ok := op.Args["tag"].(string)
		if !ok {
			return fmt.Errorf("%w: tag must be a string, got %T", model.ErrType, op.Args["tag"])
		}
		return b.Relabel(idx, tag)
	default:
		return fmt.Errorf("%w: unknown operation type %q", model.ErrValue, op.Type)
	}
}

// ApplyDelta applies an edit delta best-effort. Indices refer to the bank as
// it was before the call; they are pinned to entry IDs up front so earlier
// steps never shift later targets. Deletes run first as one atomic step,
// then adds, merges and relabels.
func (b *Bank) ApplyDelta(d *model.Delta) BatchResult {
	res := BatchResult{Errors: []OperationError{}}
	if d.Empty() {
		return res
	}

	ids := make([]string, len(b.entries))
	for i, e := range b.entries {
		ids[i] = e.ID
	}
	resolve := func(orig int) (int, error) {
		if orig < 0 || orig >= len(ids) {
			return -1, fmt.Errorf("%w: %d not in [0,%d)", model.ErrIndex, orig, len(ids))
		}
		cur := b.IndexOf(ids[orig])
		if cur < 0 {
			return -1, fmt.Errorf("%w: entry at index %d no longer exists", model.ErrValue, orig)
		}
		return cur, nil
	}

	n := 0
	if len(d.Delete) > 0 {
		res.add(n, "delete", b.Delete(d.Delete))
		n++
	}
	for _, text := range d.Add {
		res.add(n, "add", b.Add(model.NewEntry("refine-added", text, "refine-added", "refine")))
		n++
	}
	for _, pair := range d.Merge {
		res.add(n, "merge", func() error {
			i, err := resolve(pair[0])
			if err != nil {
				return err
			}
			j, err := resolve(pair[1])
			if err != nil {
				return err
			}
			return b.Merge(i, j)
		}())
		n++
	}
	for _, r := range d.Relabel {
		res.add(n, "relabel", func() error {
			idx, err := resolve(r.Index)
			if err != nil {
				return err
			}
			return b.Relabel(idx, r.Tag)
		}())
		n++
	}
	if res.Failed > 0 {
		b.logger.Warn("delta partially applied", "failed", res.Failed, "total", res.Total)
	}
	return res
}

func entryArg(args map[string]any) (*model.Entry, error) {
	switch v := args["entry"].(type) {
	case *model.Entry:
		if v == nil {
			return nil, fmt.Errorf("%w: nil entry", model.ErrValue)
		}
		return v, nil
	case map[string]any:
		return model.FromMap(v)
	case nil:
		fields := map[string]any{}
		for _, f := range model.TextFields {
			if val, ok := args[f]; ok {
				fields[f] = val
			}
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: add requires an entry", model.ErrValue)
		}
		return model.FromMap(fields)
	default:
		return nil, fmt.Errorf("%w: entry must be an object, got %T", model.ErrType, v)
	}
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", model.ErrValue, key)
	}
	return toInt(key, v)
}

func intsArg(args map[string]any, key string) ([]int, error) {
	switch v := args[key].(type) {
	case []int:
		return v, nil
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			n, err := toInt(key, item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: missing %s", model.ErrValue, key)
	default:
		return nil, fmt.Errorf("%w: %s must be a list of integers, got %T", model.ErrType, key, v)
	}
}

func toInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", model.ErrType, key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %s", model.ErrType, key, n)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", model.ErrType, key, v)
	}
}
