// internal/pkg/scheduler/zk_lock.go
package scheduler

import (
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const sweepLockRoot = "/takeout/sweep_locks"

// ZkLock 基于 ZooKeeper 临时节点实现 Lock。
// 节点是临时的：持有实例崩溃后会话过期，锁自动释放，下一轮扫描由其他实例接管。
type ZkLock struct {
	conn *zk.Conn
}

// NewZkLock 连接 ZooKeeper 并确保锁的根路径存在。
func NewZkLock(servers []string) (*ZkLock, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	if err := ensurePath(conn, sweepLockRoot); err != nil {
		conn.Close()
		return nil, err
	}
	return &ZkLock{conn: conn}, nil
}

// TryAcquire 创建 /takeout/sweep_locks/<name> 临时节点。
// 节点已存在说明其他实例正在执行该任务，返回 acquired=false。
func (l *ZkLock) TryAcquire(name string) (func(), bool, error) {
	path := sweepLockRoot + "/" + name
	_, err := l.conn.Create(path, []byte{}, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "create lock node %s", path)
	}
	release := func() {
		// 删除失败也没关系，会话结束后节点自然消失
		_ = l.conn.Delete(path, -1)
	}
	return release, true, nil
}

// Close 断开 ZooKeeper 连接。
func (l *ZkLock) Close() {
	l.conn.Close()
}

func ensurePath(conn *zk.Conn, path string) error {
	// 逐级创建持久节点
	var cur string
	for i := 1; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			cur = path[:i]
			_, err := conn.Create(cur, []byte{}, 0, zk.WorldACL(zk.PermAll))
			if err != nil && err != zk.ErrNodeExists {
				return errors.Wrapf(err, "create path %s", cur)
			}
		}
	}
	return nil
}
