package service

// OperationTask 一次乐观操作的后台单元句柄。
// 调用方不需要等待后台单元;需要确定结果时用 Wait 阻塞。
// 任务一旦派发不可取消,运行到成功或失败为止,不做自动重试。
type OperationTask struct {
	Operation  string // create, start, stop, terminate, ...
	ResourceID string // 本地记录 ID
	done       chan struct{}
	err        error
}

// newOperationTask 创建任务句柄
func newOperationTask(operation, resourceID string) *OperationTask {
	return &OperationTask{
		Operation:  operation,
		ResourceID: resourceID,
		done:       make(chan struct{}),
	}
}

// finish 投递后台单元的结果,只能调用一次
func (t *OperationTask) finish(err error) {
	t.err = err
	close(t.done)
}

// Wait 阻塞到后台单元结束,返回远端调用的错误
func (t *OperationTask) Wait() error {
	<-t.done
	return t.err
}

// Done 返回结束通知通道
func (t *OperationTask) Done() <-chan struct{} {
	return t.done
}
