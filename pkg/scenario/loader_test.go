package scenario

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/login-scenarios/pkg/models"
)

var testVars = map[string]string{
	"BASE_URL":         "https://dev.deepthought.education/login",
	"USERNAME":         "kedar_karche",
	"PASSWORD":         "Kedar@123",
	"INVALID_USERNAME": "invalid_username",
	"INVALID_PASSWORD": "invalid_password",
}

func TestLoadFileBundledScenarios(t *testing.T) {
	scenarios, err := LoadFile("../../scenarios/deepthought_login.yaml", testVars)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	ok := scenarios[0]
	assert.Equal(t, SuccessfulLogin, ok.Name)
	assert.Equal(t, models.Navigate("https://dev.deepthought.education/login"), ok.Steps[0])
	assert.Equal(t, models.WaitFor(UsernameInput, 15*time.Second), ok.Steps[1])
	assert.Equal(t, models.TypeText(UsernameInput, "kedar_karche"), ok.Steps[2])
	assert.Equal(t, models.TypeText(PasswordInput, "Kedar@123"), ok.Steps[3])

	bad := scenarios[1]
	assert.Contains(t, bad.Steps, models.Reload(true))
	assert.Contains(t, bad.Steps, models.TypeText(UsernameInput, "invalid_username"))
	assert.Contains(t, bad.Steps, models.TypeText(PasswordInput, "invalid_password"))
}

func TestBundledFileMatchesBuiltInSuite(t *testing.T) {
	scenarios, err := LoadFile("../../scenarios/deepthought_login.yaml", testVars)
	require.NoError(t, err)

	builtIn := LoginSuite(LoginConfig{
		URL:             testVars["BASE_URL"],
		Valid:           models.Credentials{Username: testVars["USERNAME"], Password: testVars["PASSWORD"]},
		InvalidUsername: testVars["INVALID_USERNAME"],
		InvalidPassword: testVars["INVALID_PASSWORD"],
		Timeout:         15 * time.Second,
	})
	assert.Equal(t, builtIn, scenarios)

	// the form is clean after the reload
	assert.Contains(t, scenarios[1].Steps, models.AssertValueEquals(PasswordInput, ""))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "empty document",
			doc:     "",
			wantErr: "no scenarios defined",
		},
		{
			name:    "empty list",
			doc:     "scenarios: []",
			wantErr: "no scenarios defined",
		},
		{
			name:    "unknown field",
			doc:     "scenarios:\n  - name: a\n    stepz: []\n",
			wantErr: "failed to parse scenarios",
		},
		{
			name:    "missing name",
			doc:     "scenarios:\n  - steps: [{type: reload}]\n",
			wantErr: "scenario 0: name is required",
		},
		{
			name:    "duplicate name",
			doc:     "scenarios:\n  - {name: a, steps: [{type: reload}]}\n  - {name: a, steps: [{type: reload}]}\n",
			wantErr: `duplicate scenario name "a"`,
		},
		{
			name:    "no steps",
			doc:     "scenarios:\n  - {name: a, steps: []}\n",
			wantErr: `scenario "a": no steps`,
		},
		{
			name:    "bad step",
			doc:     "scenarios:\n  - {name: a, steps: [{type: reload}, {type: click}]}\n",
			wantErr: `scenario "a" step 1: click: selector is required`,
		},
		{
			name:    "unknown step type",
			doc:     "scenarios:\n  - {name: a, steps: [{type: hover, selector: x}]}\n",
			wantErr: `unknown step type "hover"`,
		},
		{
			name:    "undefined variable",
			doc:     "scenarios:\n  - {name: a, steps: [{type: navigate, value: \"${NOPE}\"}]}\n",
			wantErr: `scenario "a" step 0: undefined variable NOPE`,
		},
		{
			name:    "bad duration",
			doc:     "scenarios:\n  - {name: a, steps: [{type: wait, duration: soon}]}\n",
			wantErr: "failed to parse scenarios",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc), testVars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadLeavesLiteralDollarAlone(t *testing.T) {
	doc := "scenarios:\n  - {name: a, steps: [{type: type_text, selector: '#p', value: 'pa$$word'}, {type: wait, duration: 500ms}]}\n"
	scenarios, err := Load(strings.NewReader(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, "pa$$word", scenarios[0].Steps[0].Value)
	assert.Equal(t, models.Wait(500*time.Millisecond), scenarios[0].Steps[1])
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yaml", nil)
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestSelect(t *testing.T) {
	all := []models.Scenario{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	got, err := Select(all, nil)
	require.NoError(t, err)
	assert.Equal(t, all, got)

	got, err = Select(all, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []models.Scenario{{Name: "c"}, {Name: "a"}}, got)

	_, err = Select(all, []string{"z", "a", "y"})
	assert.EqualError(t, err, "unknown scenario(s): y, z")

	_, err = Select(all, []string{"a", "b", "a"})
	assert.EqualError(t, err, `scenario "a" selected more than once`)
}

func TestFind(t *testing.T) {
	all := []models.Scenario{{Name: "a"}, {Name: "b"}}
	sc, ok := Find(all, "b")
	assert.True(t, ok)
	assert.Equal(t, "b", sc.Name)
	_, ok = Find(all, "z")
	assert.False(t, ok)
}
