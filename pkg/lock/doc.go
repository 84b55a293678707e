// Package lock provides the external mutual exclusion an install pass needs.
//
// The installer assumes it is the only writer of the plugin directory. When
// several control loops can run against the same host, RedisLock serializes
// them: Acquire sets a key with SET NX and a TTL, Release deletes it only if it
// still holds this process's token.
//
//	l, err := lock.NewRedisLock(lock.Config{URL: "redis://localhost:6379/0", Key: "pluginsync:jenkins"})
//	if err != nil {
//		return err
//	}
//	if err := l.Acquire(ctx); err != nil {
//		return err // lock.ErrLocked when another pass is running
//	}
//	defer l.Release(context.Background())
//
// Nop is used when no Redis URL is configured.
package lock
