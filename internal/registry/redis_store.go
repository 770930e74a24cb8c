// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"career-platform/internal/workflow"
)

const (
	redisJobPrefix    = "career:job:"
	redisPendingKey   = "career:jobs:pending"
	redisTerminalKey  = "career:jobs:terminal"  // zset, score = finished_at unix
	redisSuspendedKey = "career:jobs:suspended" // zset, score = suspended_at unix
	redisRunningKey   = "career:jobs:running"   // zset, score = claim time unix
)

// RedisStore go-redis 实现：每个 job 一个 hash，待执行队列是 list，
// 终态/挂起 job 各维护一个按时间排序的 zset 供保留清扫。快照是自包含
// JSON，另一进程实例可据此恢复执行。状态 CAS 通过 WATCH 事务实现。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis Store
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func jobKey(id string) string { return redisJobPrefix + id }

// Create 实现 Store
func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = "job-" + uuid.NewString()
	}
	job.Status = StatusQueued
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, jobKey(job.ID), map[string]any{
			"id":              job.ID,
			"status":          string(job.Status),
			"snapshot":        job.Snapshot,
			"exec_elapsed_ms": 0,
			"created_at":      job.CreatedAt.Format(time.RFC3339Nano),
			"updated_at":      job.UpdatedAt.Format(time.RFC3339Nano),
		})
		pipe.RPush(ctx, redisPendingKey, job.ID)
		return nil
	})
	return err
}

// Get 实现 Store
func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrUnknownJob
	}
	return jobFromFields(fields)
}

func jobFromFields(fields map[string]string) (*Job, error) {
	j := &Job{
		ID:     fields["id"],
		Status: Status(fields["status"]),
		Error:  fields["error"],
	}
	if v := fields["snapshot"]; v != "" {
		j.Snapshot = []byte(v)
	}
	j.Checkpoint = workflow.CheckpointName(fields["checkpoint"])
	if v := fields["checkpoint_payload"]; v != "" {
		if err := json.Unmarshal([]byte(v), &j.CheckpointPayload); err != nil {
			return nil, fmt.Errorf("解析 checkpoint_payload failed: %w", err)
		}
	}
	j.FailureKind = workflow.FailureKind(fields["failure_kind"])
	if v := fields["exec_elapsed_ms"]; v != "" {
		ms, _ := strconv.ParseInt(v, 10, 64)
		j.ExecElapsed = time.Duration(ms) * time.Millisecond
	}
	for field, dst := range map[string]*time.Time{
		"created_at":   &j.CreatedAt,
		"updated_at":   &j.UpdatedAt,
		"suspended_at": &j.SuspendedAt,
		"finished_at":  &j.FinishedAt,
	} {
		if v := fields[field]; v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, fmt.Errorf("解析 %s failed: %w", field, err)
			}
			*dst = t
		}
	}
	return j, nil
}

// ClaimNext 实现 Store：LPop 保证一个 id 只被一个 worker 取到
func (s *RedisStore) ClaimNext(ctx context.Context) (*Job, error) {
	for {
		id, err := s.client.LPop(ctx, redisPendingKey).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		j, err := s.Get(ctx, id)
		if err == ErrUnknownJob {
			continue // 已被驱逐
		}
		if err != nil {
			return nil, err
		}
		switch j.Status {
		case StatusQueued, StatusRunning:
			// running 是 resume 路径：Resume 已置 running，这里只刷新认领时间
			now := time.Now()
			_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, jobKey(id),
					"status", string(StatusRunning),
					"updated_at", now.Format(time.RFC3339Nano))
				pipe.ZAdd(ctx, redisRunningKey, redis.Z{Score: float64(now.Unix()), Member: id})
				return nil
			})
			if err != nil {
				return nil, err
			}
			j.Status = StatusRunning
			j.UpdatedAt = now
		default:
			continue
		}
		return j, nil
	}
}

// casStatus 在 WATCH 事务内做状态 CAS 并执行 update 写入
func (s *RedisStore) casStatus(ctx context.Context, id string, from []Status, mismatch func(Status) error, update func(pipe redis.Pipeliner)) error {
	key := jobKey(id)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		status, err := tx.HGet(ctx, key, "status").Result()
		if err == redis.Nil {
			return ErrUnknownJob
		}
		if err != nil {
			return err
		}
		current := Status(status)
		ok := false
		for _, f := range from {
			if current == f {
				ok = true
				break
			}
		}
		if !ok {
			return mismatch(current)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			update(pipe)
			return nil
		})
		return err
	}, key)
}

// Suspend 实现 Store
func (s *RedisStore) Suspend(ctx context.Context, id string, snapshot []byte, checkpoint workflow.CheckpointName, payload map[string]any, elapsed time.Duration) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.casStatus(ctx, id, []Status{StatusRunning},
		func(current Status) error {
			return fmt.Errorf("%w: %s → awaiting_approval", ErrInvalidTransition, current)
		},
		func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, jobKey(id),
				"status", string(StatusAwaitingApproval),
				"snapshot", snapshot,
				"checkpoint", string(checkpoint),
				"checkpoint_payload", payloadJSON,
				"suspended_at", now.Format(time.RFC3339Nano),
				"updated_at", now.Format(time.RFC3339Nano))
			pipe.HIncrBy(ctx, jobKey(id), "exec_elapsed_ms", elapsed.Milliseconds())
			pipe.ZAdd(ctx, redisSuspendedKey, redis.Z{Score: float64(now.Unix()), Member: id})
			pipe.ZRem(ctx, redisRunningKey, id)
		})
}

// Resume 实现 Store
func (s *RedisStore) Resume(ctx context.Context, id string, snapshot []byte) error {
	now := time.Now()
	return s.casStatus(ctx, id, []Status{StatusAwaitingApproval},
		func(Status) error { return ErrNotAwaiting },
		func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, jobKey(id),
				"status", string(StatusRunning),
				"snapshot", snapshot,
				"checkpoint", "",
				"checkpoint_payload", "",
				"suspended_at", "",
				"updated_at", now.Format(time.RFC3339Nano))
			pipe.ZRem(ctx, redisSuspendedKey, id)
			pipe.RPush(ctx, redisPendingKey, id)
		})
}

// Complete 实现 Store
func (s *RedisStore) Complete(ctx context.Context, id string, snapshot []byte, elapsed time.Duration) error {
	now := time.Now()
	return s.casStatus(ctx, id, []Status{StatusRunning},
		func(current Status) error {
			return fmt.Errorf("%w: %s → completed", ErrInvalidTransition, current)
		},
		func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, jobKey(id),
				"status", string(StatusCompleted),
				"snapshot", snapshot,
				"finished_at", now.Format(time.RFC3339Nano),
				"updated_at", now.Format(time.RFC3339Nano))
			pipe.HIncrBy(ctx, jobKey(id), "exec_elapsed_ms", elapsed.Milliseconds())
			pipe.ZAdd(ctx, redisTerminalKey, redis.Z{Score: float64(now.Unix()), Member: id})
			pipe.ZRem(ctx, redisRunningKey, id)
		})
}

// Fail 实现 Store
func (s *RedisStore) Fail(ctx context.Context, id string, snapshot []byte, kind workflow.FailureKind, msg string, elapsed time.Duration) error {
	now := time.Now()
	return s.casStatus(ctx, id, []Status{StatusRunning},
		func(current Status) error {
			return fmt.Errorf("%w: %s → failed", ErrInvalidTransition, current)
		},
		func(pipe redis.Pipeliner) {
			fields := []any{
				"status", string(StatusFailed),
				"failure_kind", string(kind),
				"error", msg,
				"finished_at", now.Format(time.RFC3339Nano),
				"updated_at", now.Format(time.RFC3339Nano),
			}
			if snapshot != nil {
				fields = append(fields, "snapshot", snapshot)
			}
			pipe.HSet(ctx, jobKey(id), fields...)
			pipe.HIncrBy(ctx, jobKey(id), "exec_elapsed_ms", elapsed.Milliseconds())
			pipe.ZAdd(ctx, redisTerminalKey, redis.Z{Score: float64(now.Unix()), Member: id})
			pipe.ZRem(ctx, redisRunningKey, id)
		})
}

// Sweep 实现 Store
func (s *RedisStore) Sweep(ctx context.Context, terminalBefore, suspendedBefore time.Time) (int, int, error) {
	counts := [2]int{}
	for i, zs := range []struct {
		key    string
		cutoff time.Time
	}{
		{redisTerminalKey, terminalBefore},
		{redisSuspendedKey, suspendedBefore},
	} {
		ids, err := s.client.ZRangeByScore(ctx, zs.key, &redis.ZRangeBy{
			Min: "-inf", Max: strconv.FormatInt(zs.cutoff.Unix(), 10),
		}).Result()
		if err != nil {
			return counts[0], counts[1], err
		}
		if len(ids) == 0 {
			continue
		}
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range ids {
				pipe.Del(ctx, jobKey(id))
				pipe.ZRem(ctx, zs.key, id)
			}
			return nil
		})
		if err != nil {
			return counts[0], counts[1], err
		}
		counts[i] = len(ids)
	}
	return counts[0], counts[1], nil
}

// errReclaimSkip 回收时状态已不是 running，跳过该 job
var errReclaimSkip = errors.New("reclaim: job no longer running")

// ReclaimStale 实现 Store：按认领时间找出过期的 running job 重新入队。
// 状态已变走的 job 只清掉 running 索引残留。
func (s *RedisStore) ReclaimStale(ctx context.Context, updatedBefore time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, redisRunningKey, &redis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(updatedBefore.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	now := time.Now()
	for _, id := range ids {
		err := s.casStatus(ctx, id, []Status{StatusRunning},
			func(Status) error { return errReclaimSkip },
			func(pipe redis.Pipeliner) {
				pipe.HSet(ctx, jobKey(id), "updated_at", now.Format(time.RFC3339Nano))
				pipe.ZRem(ctx, redisRunningKey, id)
				pipe.RPush(ctx, redisPendingKey, id)
			})
		switch {
		case errors.Is(err, ErrUnknownJob), errors.Is(err, errReclaimSkip):
			_ = s.client.ZRem(ctx, redisRunningKey, id)
		case err != nil:
			return reclaimed, err
		default:
			reclaimed++
		}
	}
	return reclaimed, nil
}
