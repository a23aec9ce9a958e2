/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mongo implements database interfaces using MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	gotime "time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/yorkie-team/tandem/server/backend/database"
	"github.com/yorkie-team/tandem/server/logging"
)

// Client is a client that connects to Mongo DB and reads or saves sessions.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	clientOptions := options.Client().ApplyURI(conf.ConnectionURI)
	if conf.MonitoringEnabled {
		threshold, err := gotime.ParseDuration(conf.MonitoringSlowQueryThreshold)
		if err != nil {
			return nil, fmt.Errorf("parse slow query threshold: %w", err)
		}
		clientOptions.SetMonitor(NewQueryMonitor(threshold).CommandMonitor())
	}

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.Database)); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.Database)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// FindSessionInfoByKey returns the session of the given key.
func (c *Client) FindSessionInfoByKey(
	ctx context.Context,
	key string,
) (*database.SessionInfo, error) {
	result := c.collection(ColSessions).FindOne(ctx, bson.M{"key": key})
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", key, database.ErrSessionNotFound)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("find session of %s: %w", key, result.Err())
	}

	info := database.NewSessionInfo(key)
	if err := result.Decode(info); err != nil {
		return nil, fmt.Errorf("decode session of %s: %w", key, err)
	}
	if info.Channels == nil {
		info.Channels = make(map[string]string)
	}

	return info, nil
}

// UpsertSessionInfo writes the whole session record.
func (c *Client) UpsertSessionInfo(
	ctx context.Context,
	info *database.SessionInfo,
) error {
	if _, err := c.collection(ColSessions).ReplaceOne(
		ctx,
		bson.M{"key": info.Key},
		info,
		options.Replace().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("upsert session of %s: %w", info.Key, err)
	}

	return nil
}

// FindStaleSessionInfos returns sessions inactive since before the given
// time, ordered by key.
func (c *Client) FindStaleSessionInfos(
	ctx context.Context,
	before gotime.Time,
	afterKey string,
	limit int,
) ([]*database.SessionInfo, error) {
	filter := staleFilter(before)
	filter["key"] = bson.M{"$gt": afterKey}

	opts := options.Find().SetSort(bson.D{{Key: "key", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := c.collection(ColSessions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find stale sessions: %w", err)
	}

	var infos []*database.SessionInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("fetch stale sessions: %w", err)
	}

	return infos, nil
}

// DeleteSessionInfoIfStale deletes the session if it is still stale.
func (c *Client) DeleteSessionInfoIfStale(
	ctx context.Context,
	key string,
	before gotime.Time,
) (bool, error) {
	filter := staleFilter(before)
	filter["key"] = key

	result, err := c.collection(ColSessions).DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("delete session of %s: %w", key, err)
	}

	return result.DeletedCount > 0, nil
}

// staleFilter matches sessions whose effective last activity is before the
// given time. Records without last_active_at are judged by last_edited_at.
func staleFilter(before gotime.Time) bson.M {
	zero := gotime.Time{}
	return bson.M{
		"$or": bson.A{
			bson.M{"last_active_at": bson.M{"$gt": zero, "$lt": before}},
			bson.M{
				"last_active_at": bson.M{"$in": bson.A{nil, zero}},
				"last_edited_at": bson.M{"$lt": before},
			},
		},
	}
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}
