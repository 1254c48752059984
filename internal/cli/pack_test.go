package cli

import (
	"testing"

	"github.com/robdennis/trappist/internal/pack"
)

func TestParseDirtyExportAnswer(t *testing.T) {
	tests := []struct {
		answer string
		want   pack.DirtyDecision
	}{
		{"c", pack.CommitDirty},
		{"commit", pack.CommitDirty},
		{" C \n", pack.CommitDirty},
		{"e", pack.ExportDirty},
		{"export", pack.ExportDirty},
		{"a", pack.AbortExport},
		{"abort", pack.AbortExport},
		{"", pack.AbortExport},
		{"yes", pack.AbortExport},
	}

	for _, tt := range tests {
		if got := parseDirtyExportAnswer(tt.answer); got != tt.want {
			t.Errorf("parseDirtyExportAnswer(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}

func TestDirtyExportPromptAssumeYesCommits(t *testing.T) {
	app := &App{assumeYes: true}
	if got := app.dirtyExportPrompt([]string{"Burn"}); got != pack.CommitDirty {
		t.Errorf("dirtyExportPrompt() with --yes = %v, want CommitDirty", got)
	}
}
