package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBranchFilterMatches(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		f := BranchFilter{}
		assert.True(t, f.Matches("develop"))
		assert.True(t, f.Matches("feature-x"))
	})

	t.Run("exact match", func(t *testing.T) {
		f := BranchFilter{Only: []string{"develop"}}
		assert.True(t, f.Matches("develop"))
		assert.False(t, f.Matches("feature-x"))
		assert.False(t, f.Matches("development"))
	})

	t.Run("glob patterns", func(t *testing.T) {
		f := BranchFilter{Only: []string{"release/*", "develop"}}
		assert.True(t, f.Matches("release/1.2"))
		assert.True(t, f.Matches("develop"))
		assert.False(t, f.Matches("hotfix/1.2"))
	})
}

func TestModelJob(t *testing.T) {
	m := &Model{Jobs: []*Job{{Name: "build"}, {Name: "test"}}}
	assert.NotNil(t, m.Job("build"))
	assert.Nil(t, m.Job("missing"))
}

func TestValidateJob(t *testing.T) {
	cases := []struct {
		name    string
		step    *Step
		wantErr string
	}{
		{"run without command", &Step{Kind: StepRun, Name: "x"}, "requires command"},
		{"checkout without repo", &Step{Kind: StepCheckout, Name: "x"}, "requires repo"},
		{"save_cache without path", &Step{Kind: StepSaveCache, Name: "x", Namespace: "deps"}, "requires namespace and path"},
		{"persist without paths", &Step{Kind: StepPersistWorkspace, Name: "x"}, "requires paths"},
		{"push without source", &Step{Kind: StepPushImage, Name: "x", ImageRef: "r"}, "requires image_ref and source"},
		{"unknown kind", &Step{Kind: "teleport", Name: "x"}, "unknown kind"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJob(&Job{Name: "j", Steps: []*Step{tc.step}})
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}

	t.Run("valid job", func(t *testing.T) {
		err := ValidateJob(&Job{Name: "j", Steps: []*Step{
			{Kind: StepRun, Name: "x", Command: "make"},
			{Kind: StepAttachWorkspace, Name: "y"},
		}})
		assert.NoError(t, err)
	})
}
