package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// scripted is one canned oracle answer: either raw JSON or an error.
type scripted struct {
	json string
	err  error
}

func js(raw string) scripted { return scripted{json: raw} }
func fail(err error) scripted { return scripted{err: err} }
func sufficient(ok bool) scripted {
	return js(fmt.Sprintf(`{"is_sufficient": %t, "reason": "scripted"}`, ok))
}

type oracleCall struct {
	kind         string
	schema       string
	instructions []string
	transcript   []Turn
}

// fakeOracle replays scripted answers per schema. Unscripted structured
// calls answer "{}", unscripted text calls answer a numbered question.
type fakeOracle struct {
	mu         sync.Mutex
	texts      []scripted
	structured map[string][]scripted
	calls      []oracleCall
	asked      int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{structured: make(map[string][]scripted)}
}

func (f *fakeOracle) script(schema Schema, answers ...scripted) *fakeOracle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structured[schema.Name] = append(f.structured[schema.Name], answers...)
	return f
}

func (f *fakeOracle) scriptText(answers ...scripted) *fakeOracle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, answers...)
	return f
}

func (f *fakeOracle) GenerateText(ctx context.Context, instructions []string, transcript []Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, oracleCall{
		kind:         "text",
		instructions: instructions,
		transcript:   append([]Turn(nil), transcript...),
	})
	if len(f.texts) > 0 {
		next := f.texts[0]
		f.texts = f.texts[1:]
		if next.err != nil {
			return "", next.err
		}
		return next.json, nil
	}
	f.asked++
	return fmt.Sprintf("question %d", f.asked), nil
}

func (f *fakeOracle) GenerateStructured(ctx context.Context, instructions []string, transcript []Turn, schema Schema, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, oracleCall{
		kind:         "structured",
		schema:       schema.Name,
		instructions: instructions,
		transcript:   append([]Turn(nil), transcript...),
	})
	raw := "{}"
	if q := f.structured[schema.Name]; len(q) > 0 {
		next := q[0]
		f.structured[schema.Name] = q[1:]
		if next.err != nil {
			return next.err
		}
		raw = next.json
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func (f *fakeOracle) callsFor(schema Schema) []oracleCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []oracleCall
	for _, c := range f.calls {
		if c.schema == schema.Name {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
