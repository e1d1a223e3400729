package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voxflow/go-transcribe/backend"
)

func (rb *redisBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	now := fmt.Sprintf("%.0f", score(rb.now()))

	p := rb.rdb.Pipeline()
	activeCmd := p.SCard(ctx, rb.keys.instancesActive())
	workflowsCmd := p.ZCount(ctx, rb.keys.readyInstances(), "-inf", now)
	activitiesCmd := p.ZCount(ctx, rb.keys.readyActivities(), "-inf", now)

	if _, err := p.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}

	return &backend.Stats{
		ActiveWorkflowInstances: activeCmd.Val(),
		PendingWorkflowTasks:    workflowsCmd.Val(),
		PendingActivities:       activitiesCmd.Val(),
	}, nil
}
