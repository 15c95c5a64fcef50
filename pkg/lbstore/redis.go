package lbstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/redis/go-redis/v9"
)

// key layout:
//
//	lb:s:<id>          hash {conf, state}   (the watched key)
//	lb:s:<id>:h        list "<ts>:<val>"    newest first, capped
//	lb:services:<lbl>  set of service ids
//	lb:labels          set of label names
//	lb:l:<lbl>         hash {conf}          label routing
const (
	fieldConf  = "conf"
	fieldState = "state"
)

func serviceKey(id string) string      { return "lb:s:" + id }
func historyKey(id string) string      { return "lb:s:" + id + ":h" }
func labelMembersKey(lbl string) string { return "lb:services:" + lbl }
func labelConfigKey(lbl string) string  { return "lb:l:" + lbl }

const labelsKey = "lb:labels"

type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

// url like redis://localhost:6379/0
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("NewRedis: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("NewRedis: ping: %w", err)
	}

	return &Redis{client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, id string) (*lbdomain.Service, error) {
	return loadServiceFromHash(ctx, r.client, id)
}

func (r *Redis) Transact(ctx context.Context, id string, fn TxFn) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := loadServiceFromHash(ctx, tx, id)
		if err != nil {
			return err
		}

		change, err := fn(current)
		if err != nil || change == nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return queueChange(ctx, pipe, id, change)
		})
		return err
	}, serviceKey(id))

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}

	return err
}

func queueChange(ctx context.Context, pipe redis.Pipeliner, id string, change *Change) error {
	add, remove := indexChanges(change)

	for _, lbl := range add {
		pipe.SAdd(ctx, labelMembersKey(lbl), id)
	}
	if len(change.LabelsAdded) > 0 {
		pipe.SAdd(ctx, labelsKey, stringsToArgs(change.LabelsAdded)...)
	}
	for _, lbl := range remove {
		pipe.SRem(ctx, labelMembersKey(lbl), id)
	}

	if change.Delete {
		pipe.Del(ctx, serviceKey(id), historyKey(id))
		return nil
	}

	if change.Put != nil {
		conf, err := json.Marshal(change.Put.Config)
		if err != nil {
			return err
		}
		state, err := json.Marshal(change.Put.State)
		if err != nil {
			return err
		}

		pipe.HSet(ctx, serviceKey(id), fieldConf, string(conf), fieldState, string(state))
	}

	if change.Beat != nil {
		pipe.LPush(ctx, historyKey(id), formatBeat(*change.Beat))
		pipe.LTrim(ctx, historyKey(id), 0, lbdomain.MaxSavedBeats-1)
	}

	return nil
}

func (r *Redis) Members(ctx context.Context, label string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, labelMembersKey(label)).Result()
	if err != nil {
		return nil, err
	}

	sort.Strings(ids)

	return ids, nil
}

func (r *Redis) Labels(ctx context.Context) ([]string, error) {
	labels, err := r.client.SMembers(ctx, labelsKey).Result()
	if err != nil {
		return nil, err
	}

	sort.Strings(labels)

	return labels, nil
}

func (r *Redis) LabelConfig(ctx context.Context, label string) (*lbdomain.LabelConfig, error) {
	conf := &lbdomain.LabelConfig{}

	raw, err := r.client.HGet(ctx, labelConfigKey(label), fieldConf).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return conf, nil
		}

		return nil, err
	}

	if err := json.Unmarshal([]byte(raw), conf); err != nil {
		return nil, fmt.Errorf("label %s: %w", label, err)
	}

	return conf, nil
}

func (r *Redis) SetLabelConfig(ctx context.Context, label string, conf lbdomain.LabelConfig) error {
	asJson, err := json.Marshal(conf)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, labelConfigKey(label), fieldConf, string(asJson))
		if label != lbdomain.LabelAll {
			pipe.SAdd(ctx, labelsKey, label)
		}
		return nil
	})
	return err
}

func (r *Redis) History(ctx context.Context, id string) ([]lbdomain.Beat, error) {
	raw, err := r.client.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	beats := []lbdomain.Beat{}
	for _, item := range raw {
		beat, err := parseBeat(item)
		if err != nil {
			return nil, fmt.Errorf("history of %s: %w", id, err)
		}

		beats = append(beats, beat)
	}

	return beats, nil
}

// *redis.Client and *redis.Tx both satisfy this
type hashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func loadServiceFromHash(ctx context.Context, db hashGetter, id string) (*lbdomain.Service, error) {
	fields, err := db.HGetAll(ctx, serviceKey(id)).Result()
	if err != nil {
		return nil, err
	}

	rawState, found := fields[fieldState]
	if !found {
		return nil, nil
	}

	service := &lbdomain.Service{Id: id, Config: lbdomain.DefaultConfig()}

	if rawConf, found := fields[fieldConf]; found {
		if err := json.Unmarshal([]byte(rawConf), &service.Config); err != nil {
			return nil, fmt.Errorf("config of %s: %w", id, err)
		}
	}

	if err := json.Unmarshal([]byte(rawState), &service.State); err != nil {
		return nil, fmt.Errorf("state of %s: %w", id, err)
	}

	return service, nil
}

func formatBeat(beat lbdomain.Beat) string {
	return fmt.Sprintf("%d:%d", beat.Ts, beat.Val)
}

func parseBeat(serialized string) (lbdomain.Beat, error) {
	parts := strings.SplitN(serialized, ":", 2)
	if len(parts) != 2 {
		return lbdomain.Beat{}, fmt.Errorf("bad beat: %s", serialized)
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return lbdomain.Beat{}, fmt.Errorf("bad beat ts: %w", err)
	}

	val, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return lbdomain.Beat{}, fmt.Errorf("bad beat val: %w", err)
	}

	return lbdomain.Beat{Ts: ts, Val: val}, nil
}

func stringsToArgs(items []string) []interface{} {
	args := []interface{}{}
	for _, item := range items {
		args = append(args, item)
	}

	return args
}
