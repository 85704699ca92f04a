package repository

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUpdate_metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	EnableMetrics("svn_mirror", reg)

	svn2git := fakeTool(t, "svn2git", `if [ "$n" -eq 1 ]; then echo "git-svn died of signal 13"; exit 1; fi`)
	bfg := fakeTool(t, "bfg", "exit 0")
	git := fakeTool(t, "git", `
case "$1" in
  push) exit 1 ;;
esac
exit 0`)

	repo, _ := newTestRepo(t, Config{Commands: Commands{SVN2Git: svn2git, BFG: bfg, Git: git}})
	name := repo.Name()

	res := repo.Update(context.Background())
	if res.Sync != nil || res.Strip != nil || res.Push == nil {
		t.Fatalf("Update() = %+v, only push expected to fail", res)
	}

	tests := []struct {
		step    string
		success string
		want    float64
	}{
		{stepSync, "true", 1},
		{stepStrip, "true", 1},
		{stepPush, "false", 1},
		{stepPush, "true", 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(stepCount.WithLabelValues(name, tt.step, tt.success)); got != tt.want {
			t.Errorf("step_count{step=%s,success=%s} = %v, want %v", tt.step, tt.success, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(syncRestartCount.WithLabelValues(name)); got != 1 {
		t.Errorf("sync_restart_count = %v, want 1", got)
	}

	// last success is only set when all steps succeeded
	if got := testutil.CollectAndCount(lastSuccessTimestamp); got != 0 {
		t.Errorf("last_success_timestamp series = %d, want 0", got)
	}

	if got := testutil.CollectAndCount(stepLatency); got != 3 {
		t.Errorf("step_latency_seconds series = %d, want 3", got)
	}
}
