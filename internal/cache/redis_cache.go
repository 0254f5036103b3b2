package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix 所有缓存键的命名空间前缀
// 分块服务经常与其他服务共用Redis实例，键必须隔离在自己的命名空间内
const redisKeyPrefix = "mdchunk:"

// redisScanBatch 每批SCAN/DEL的键数量
const redisScanBatch = 100

// RedisCache 基于Redis的共享缓存
// 多实例部署时分块结果可跨进程命中；所有键带命名空间前缀，
// Clear只清除本服务写入的键
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache 创建Redis缓存并验证连接
func NewRedisCache(config Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client:     client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// Get 获取缓存内容
func (r *RedisCache) Get(key string) (string, bool, error) {
	value, err := r.client.Get(context.Background(), redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}

	return value, true, nil
}

// Set 设置缓存内容，ttl为0时使用默认过期时间
func (r *RedisCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	return r.client.Set(context.Background(), redisKeyPrefix+key, value, ttl).Err()
}

// Delete 删除缓存项
func (r *RedisCache) Delete(key string) error {
	return r.client.Del(context.Background(), redisKeyPrefix+key).Err()
}

// Clear 清空本服务命名空间下的所有键
// 用SCAN按前缀逐批删除，不触碰同库中其他服务的键
func (r *RedisCache) Clear() error {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanBatch).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= redisScanBatch {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

// 在包初始化时注册Redis缓存
func init() {
	RegisterCache("redis", NewRedisCache)
}
