package infra

import "fmt"

const (
	// RedisNamespace — базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "agentflow"
)

// Ключи для Sets (состояние)
const (
	RedisKeySuspendedAgents   = RedisNamespace + ":agents:suspended_set"
	RedisKeySandboxAgents     = RedisNamespace + ":agents:sandbox_set"
	RedisKeyLockWarmupSuspend = RedisNamespace + ":lock:warmup:suspended"
	RedisKeyLockWarmupSandbox = RedisNamespace + ":lock:warmup:sandbox"
)

// Каналы Pub/Sub (события)
const (
	RedisChanSuspend = RedisNamespace + ":agents:suspend-signal"
	RedisChanSandbox = RedisNamespace + ":agents:sandbox-signal"
)

// GetWarmupLockKey — генератор ключей для блокировок (если нужны динамические)
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
