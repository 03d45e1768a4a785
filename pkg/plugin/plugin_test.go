package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Trace(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	return nil
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

type fakeInvocation struct {
	message string
	params  map[string]interface{}
	sink    TraceSink
}

func (f *fakeInvocation) MessageName() string                     { return f.message }
func (f *fakeInvocation) InputParameters() map[string]interface{} { return f.params }
func (f *fakeInvocation) TraceSink() TraceSink                    { return f.sink }

func invocation(message string, target interface{}) *fakeInvocation {
	params := map[string]interface{}{}
	if target != nil {
		params[TargetKey] = target
	}
	return &fakeInvocation{message: message, params: params, sink: &recordingSink{}}
}

// calls records which callbacks ran and with what.
type calls struct {
	names   []string
	targets []interface{}
	configs []Configuration
}

func (c *calls) handlers() Handlers {
	entity := func(name string) EntityHandler {
		return func(_ context.Context, pc *Context, t *Entity) error {
			c.names = append(c.names, name)
			c.targets = append(c.targets, t)
			c.configs = append(c.configs, pc.Config())
			return nil
		}
	}
	ref := func(name string) ReferenceHandler {
		return func(_ context.Context, pc *Context, t *EntityReference) error {
			c.names = append(c.names, name)
			c.targets = append(c.targets, t)
			c.configs = append(c.configs, pc.Config())
			return nil
		}
	}
	return Handlers{
		OnCreate:       entity("create"),
		OnUpdate:       entity("update"),
		OnDelete:       ref("delete"),
		OnAssociate:    ref("associate"),
		OnDisassociate: ref("disassociate"),
		OnCustomMessage: func(_ context.Context, pc *Context) error {
			c.names = append(c.names, "custom:"+pc.MessageName())
			c.configs = append(c.configs, pc.Config())
			return nil
		},
	}
}

func newEntity() *Entity {
	return &Entity{LogicalName: "account", ID: uuid.New(), Attributes: map[string]interface{}{"name": "Contoso"}}
}

func newReference() *EntityReference {
	return &EntityReference{LogicalName: "account", ID: uuid.New()}
}

func TestInvoke_RoutesTypedMessages(t *testing.T) {
	tests := []struct {
		message string
		target  interface{}
		want    string
	}{
		{"Create", newEntity(), "create"},
		{"Update", newEntity(), "update"},
		{"Delete", newReference(), "delete"},
		{"Associate", newReference(), "associate"},
		{"Disassociate", newReference(), "disassociate"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			c := &calls{}
			p := New(NewConfiguration("", ""), c.handlers())

			err := p.Invoke(context.Background(), invocation(tt.message, tt.target))

			require.NoError(t, err)
			require.Equal(t, []string{tt.want}, c.names)
			assert.Same(t, tt.target, c.targets[0])
		})
	}
}

func TestInvoke_MissingOrMismatchedTargetSkips(t *testing.T) {
	tests := []struct {
		name    string
		message string
		target  interface{}
	}{
		{"create without target", "Create", nil},
		{"update with reference", "Update", newReference()},
		{"delete with entity", "Delete", newEntity()},
		{"associate with string", "Associate", "not-a-reference"},
		{"disassociate without target", "Disassociate", nil},
		{"create with entity value not pointer", "Create", *newEntity()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &calls{}
			p := New(NewConfiguration("", ""), c.handlers())

			err := p.Invoke(context.Background(), invocation(tt.message, tt.target))

			require.NoError(t, err)
			assert.Empty(t, c.names)
		})
	}
}

func TestInvoke_TargetKeyIsCaseSensitive(t *testing.T) {
	c := &calls{}
	p := New(NewConfiguration("", ""), c.handlers())
	inv := &fakeInvocation{
		message: "Create",
		params:  map[string]interface{}{"target": newEntity()},
	}

	require.NoError(t, p.Invoke(context.Background(), inv))
	assert.Empty(t, c.names)
}

func TestInvoke_UnknownMessageGoesToCustomHandler(t *testing.T) {
	for _, name := range []string{"Assign", "create", "SetState", ""} {
		t.Run(name, func(t *testing.T) {
			c := &calls{}
			p := New(NewConfiguration("", ""), c.handlers())

			require.NoError(t, p.Invoke(context.Background(), invocation(name, newEntity())))
			assert.Equal(t, []string{"custom:" + name}, c.names)
		})
	}
}

func TestInvoke_NilHandlersAreNoOps(t *testing.T) {
	p := New(NewConfiguration("", ""), Handlers{})
	for _, msg := range []string{"Create", "Update", "Delete", "Associate", "Disassociate", "Custom"} {
		assert.NoError(t, p.Invoke(context.Background(), invocation(msg, newEntity())))
	}
}

func TestInvoke_UntypedPreHookRunsBeforeRouting(t *testing.T) {
	var order []string
	p := New(NewConfiguration("", ""), Handlers{
		PreExecute: func(_ context.Context, pc *Context) error {
			order = append(order, "pre:"+pc.MessageName())
			return nil
		},
		OnCreate: func(context.Context, *Context, *Entity) error {
			order = append(order, "create")
			return nil
		},
	})

	require.NoError(t, p.Invoke(context.Background(), invocation("Create", nil)))
	require.NoError(t, p.Invoke(context.Background(), invocation("Create", newEntity())))
	assert.Equal(t, []string{"pre:Create", "pre:Create", "create"}, order)
}

func TestInvoke_APIFailureForwardsCode(t *testing.T) {
	p := New(NewConfiguration("", ""), Handlers{
		OnDelete: func(context.Context, *Context, *EntityReference) error {
			return fmt.Errorf("lookup: %w", &APIError{Code: 404, Message: "record not found"})
		},
	})

	err := p.Invoke(context.Background(), invocation("Delete", newReference()))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	code, ok := perr.Status()
	assert.True(t, ok)
	assert.Equal(t, 404, code)
	assert.Equal(t, "record not found", perr.Message)
	assert.Nil(t, perr.Fault)
	assert.Nil(t, perr.Cause())
}

func TestInvoke_RemoteFaultAttachesPayload(t *testing.T) {
	fault := &Fault{ErrorCode: -2147220891, Message: "duplicate key", InnerFault: &Fault{ErrorCode: 7, Message: "sql"}}
	p := New(NewConfiguration("", ""), Handlers{
		OnUpdate: func(context.Context, *Context, *Entity) error {
			return &FaultError{Reason: "save failed", Fault: fault}
		},
	})

	err := p.Invoke(context.Background(), invocation("Update", newEntity()))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.True(t, strings.HasPrefix(perr.Message, ErrorPrefix))
	assert.Contains(t, perr.Message, "save failed")
	assert.Contains(t, perr.Message, "duplicate key")
	assert.Contains(t, perr.Message, "inner fault")
	assert.Same(t, fault, perr.Fault)
	_, hasStatus := perr.Status()
	assert.False(t, hasStatus)
	assert.Nil(t, perr.Cause())
}

func TestInvoke_UnknownFailureAttachesCause(t *testing.T) {
	boom := errors.New("boom")
	p := New(NewConfiguration("", ""), Handlers{
		OnCreate: func(context.Context, *Context, *Entity) error { return boom },
	})

	err := p.Invoke(context.Background(), invocation("Create", newEntity()))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorPrefix+"boom", perr.Message)
	assert.Same(t, boom, perr.Cause())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, perr.Fault)
	_, hasStatus := perr.Status()
	assert.False(t, hasStatus)
}

func TestInvoke_PanicBecomesUnknownFailure(t *testing.T) {
	p := New(NewConfiguration("", ""), Handlers{
		OnCustomMessage: func(context.Context, *Context) error {
			var m map[string]int
			m["x"] = 1
			return nil
		},
	})
	inv := invocation("Recalculate", nil)

	err := p.Invoke(context.Background(), inv)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.True(t, strings.HasPrefix(perr.Message, ErrorPrefix+"plugin panic:"))
	require.NotNil(t, perr.Cause())

	lines := inv.sink.(*recordingSink).Lines()
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "UnknownFailure was thrown. "))
	assert.Contains(t, lines[len(lines)-1], "goroutine")
}

func TestInvoke_FailureTracesCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api", &APIError{Code: 500, Message: "down"}, "ApiFailure was thrown."},
		{"fault", &FaultError{Reason: "x", Fault: &Fault{}}, "RemoteFault was thrown."},
		{"unknown", errors.New("x"), "UnknownFailure was thrown."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(NewConfiguration("", ""), Handlers{
				OnCreate: func(context.Context, *Context, *Entity) error { return tt.err },
			}, WithStackTraces(false))
			inv := invocation("Create", newEntity())

			require.Error(t, p.Invoke(context.Background(), inv))
			assert.Equal(t, []string{tt.want}, inv.sink.(*recordingSink).Lines())
		})
	}
}

func TestInvoke_BrokenTraceSinkDoesNotReplaceError(t *testing.T) {
	sinks := map[string]TraceSink{
		"erroring":  TraceSinkFunc(func(string) error { return errors.New("sink down") }),
		"panicking": TraceSinkFunc(func(string) error { panic("sink exploded") }),
		"nil":       nil,
	}

	for name, sink := range sinks {
		t.Run(name, func(t *testing.T) {
			p := New(NewConfiguration("", ""), Handlers{
				OnCreate: func(_ context.Context, pc *Context, _ *Entity) error {
					pc.Trace("about to fail")
					return &APIError{Code: 409, Message: "conflict"}
				},
			})
			inv := &fakeInvocation{message: "Create", params: map[string]interface{}{TargetKey: newEntity()}, sink: sink}

			err := p.Invoke(context.Background(), inv)

			var perr *Error
			require.ErrorAs(t, err, &perr)
			code, _ := perr.Status()
			assert.Equal(t, 409, code)
			assert.Equal(t, "conflict", perr.Message)
		})
	}
}

func TestInvoke_SuccessReturnsUntypedNil(t *testing.T) {
	p := New(NewConfiguration("", ""), Handlers{})
	err := p.Invoke(context.Background(), invocation("Create", newEntity()))
	assert.True(t, err == nil)
}

func TestInvoke_NilInvocation(t *testing.T) {
	p := New(NewConfiguration("", ""), Handlers{})
	err := p.Invoke(context.Background(), nil)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.True(t, strings.HasPrefix(perr.Message, ErrorPrefix))
}

func TestInvoke_ConfigurationVisibleToEveryCallback(t *testing.T) {
	c := &calls{}
	cfg := NewConfiguration("protected=account", "s3cr3t")
	p := New(cfg, c.handlers())

	for _, tt := range []struct {
		message string
		target  interface{}
	}{
		{"Create", newEntity()},
		{"Update", newEntity()},
		{"Delete", newReference()},
		{"Associate", newReference()},
		{"Disassociate", newReference()},
		{"Custom", nil},
	} {
		require.NoError(t, p.Invoke(context.Background(), invocation(tt.message, tt.target)))
	}

	require.Len(t, c.configs, 6)
	for _, got := range c.configs {
		assert.Equal(t, "protected=account", got.Unsecure())
		assert.Equal(t, "s3cr3t", got.Secure())
	}
	assert.Equal(t, cfg, p.Config())
}

func TestInvoke_VerboseTraceIsGated(t *testing.T) {
	quiet := invocation("Create", nil)
	require.NoError(t, New(NewConfiguration("", ""), Handlers{}).Invoke(context.Background(), quiet))
	assert.Empty(t, quiet.sink.(*recordingSink).Lines())

	loud := invocation("Create", nil)
	p := New(NewConfiguration("", ""), (&calls{}).handlers(), WithVerboseTrace(true))
	require.NoError(t, p.Invoke(context.Background(), loud))
	lines := loud.sink.(*recordingSink).Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, `routing "Create" as Create`, lines[0])
	assert.Contains(t, lines[1], "callback skipped")
}

func TestInvoke_ConcurrentInvocations(t *testing.T) {
	var mu sync.Mutex
	seen := map[uuid.UUID]int{}
	p := New(NewConfiguration("u", "s"), Handlers{
		OnCreate: func(_ context.Context, _ *Context, e *Entity) error {
			mu.Lock()
			seen[e.ID]++
			mu.Unlock()
			return nil
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Invoke(context.Background(), invocation("Create", newEntity())))
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
}
