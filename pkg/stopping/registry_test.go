package stopping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

func TestDefaultRegistry_Names(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"conditional", "count", "length", "pattern", "regex"}, r.Names())
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	always := func(Params) (types.StoppingDecision, error) {
		return types.StoppingDecisionFunc(func(string) bool { return true }), nil
	}

	require.NoError(t, r.Register("always", always))
	assert.Error(t, r.Register("always", always))
	assert.Error(t, r.Register("", always))
	assert.Error(t, r.Register("broken", nil))
	assert.Panics(t, func() { r.MustRegister("always", always) })
}

func TestRegistry_New(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name    string
		stopper string
		params  Params
		text    string
		want    bool
		wantErr string
	}{
		{name: "length", stopper: "length", params: Params{"max_length": 3}, text: "abcd", want: true},
		{name: "length from json float", stopper: "length", params: Params{"max_length": 3.0}, text: "abc", want: false},
		{name: "length fractional", stopper: "length", params: Params{"max_length": 3.5}, wantErr: "stopper.max_length"},
		{name: "length negative", stopper: "length", params: Params{"max_length": -1}, wantErr: "stopper.max_length"},
		{name: "length missing", stopper: "length", params: nil, wantErr: "stopper.max_length"},
		{name: "pattern", stopper: "pattern", params: Params{"patterns": []interface{}{"###"}}, text: "a ### b", want: true},
		{name: "pattern string slice", stopper: "pattern", params: Params{"patterns": []string{"x"}}, text: "y", want: false},
		{name: "pattern empty list", stopper: "pattern", params: Params{"patterns": []interface{}{}}, wantErr: "stopper.patterns"},
		{name: "pattern empty entry", stopper: "pattern", params: Params{"patterns": []interface{}{""}}, wantErr: "stopper.patterns"},
		{name: "pattern wrong type", stopper: "pattern", params: Params{"patterns": []interface{}{1}}, wantErr: "stopper.patterns"},
		{name: "conditional", stopper: "conditional", params: Params{"marker": "END", "min_length": 5}, text: "xxEND", want: true},
		{name: "conditional default length", stopper: "conditional", params: Params{"marker": "END"}, text: "END", want: true},
		{name: "conditional no marker", stopper: "conditional", params: Params{"min_length": 5}, wantErr: "stopper.marker"},
		{name: "regex", stopper: "regex", params: Params{"pattern": `^\s*$`}, text: "  ", want: true},
		{name: "regex invalid", stopper: "regex", params: Params{"pattern": "("}, wantErr: "stopper.pattern"},
		{name: "count", stopper: "count", params: Params{"marker": ".", "limit": 2}, text: "a. b.", want: true},
		{name: "count default limit", stopper: "count", params: Params{"marker": "."}, text: "a.", want: true},
		{name: "count zero limit", stopper: "count", params: Params{"marker": ".", "limit": 0}, wantErr: "stopper.limit"},
		{name: "unknown", stopper: "nope", wantErr: "stopper.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.New(tt.stopper, tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, types.IsConfigurationError(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Evaluate(tt.text))
		})
	}
}

func TestRegistry_FactoryBuildsFreshInstances(t *testing.T) {
	factory, err := DefaultRegistry().Factory("count", Params{"marker": "x", "limit": 2})
	require.NoError(t, err)

	a := factory()
	b := factory()
	require.NotNil(t, a)
	assert.NotSame(t, a, b)

	assert.False(t, a.Evaluate("x"))
	// b has its own count
	assert.False(t, b.Evaluate("x"))
	assert.True(t, a.Evaluate("xx"))
}

func TestRegistry_FactoryFailsFast(t *testing.T) {
	factory, err := DefaultRegistry().Factory("regex", Params{"pattern": "["})
	assert.Nil(t, factory)
	assert.True(t, types.IsConfigurationError(err))
}

func TestRegistry_NilConstructorResult(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("nil", func(Params) (types.StoppingDecision, error) { return nil, nil })
	_, err := r.New("nil", nil)
	assert.ErrorIs(t, err, types.ErrFactoryReturnedNil)
}

func TestParams_FromYAML(t *testing.T) {
	var p Params
	require.NoError(t, yaml.Unmarshal([]byte("marker: END\nmin_length: 50\npatterns: [a, b]\n"), &p))

	marker, err := p.String("marker")
	require.NoError(t, err)
	assert.Equal(t, "END", marker)

	n, err := p.Int("min_length")
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	patterns, err := p.Strings("patterns")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, patterns)

	def, err := p.IntOrDefault("limit", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, def)
}
