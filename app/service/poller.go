package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"note-tracker/app/client"
	"note-tracker/app/logger"
	"note-tracker/app/model"
	"note-tracker/app/store"

	"github.com/robfig/cron/v3"
)

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 3 * time.Second

// RemoteTaskService 笔记生成后端
type RemoteTaskService interface {
	Submit(ctx context.Context, taskID string, params model.SubmissionParameters) error
	Status(ctx context.Context, taskID string) (*client.StatusResult, error)
	Delete(ctx context.Context, videoID, platform string) error
}

// Poller 定期查询未完成任务的状态并同步到本地存储
type Poller struct {
	store    *store.Store
	remote   RemoteTaskService
	log      *logger.Logger
	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	job      cron.Job // 整个生命周期共用同一个跳过保护
	interval time.Duration
	running  bool
}

// NewPoller 创建状态轮询器，interval 不大于 0 时使用默认间隔
func NewPoller(st *store.Store, remote RemoteTaskService, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		store:    st,
		remote:   remote,
		log:      log,
		interval: interval,
	}
	p.job = cron.SkipIfStillRunning(log.Cron())(cron.FuncJob(func() {
		p.Tick(context.Background())
	}))
	return p
}

// Start 启动轮询
// 上一轮尚未结束时跳过本轮，调整间隔后也是如此，保证同一时刻最多只有一个状态查询在进行
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.cron = cron.New(cron.WithLogger(p.log.Cron()))
	p.schedule()
	p.cron.Start()
	p.running = true

	p.log.Infof("任务状态轮询已启动，间隔: %v", p.interval)
	return nil
}

// Stop 停止轮询，等待正在进行的一轮结束；进行中的请求不会被中断
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	c := p.cron
	p.mu.Unlock()

	<-c.Stop().Done()
	p.log.Info("任务状态轮询已停止")
}

// Interval 返回当前轮询间隔
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval 修改轮询间隔，运行中时立即按新间隔重新调度
func (p *Poller) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("轮询间隔必须大于 0: %v", interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if interval == p.interval {
		return nil
	}
	p.interval = interval
	if !p.running {
		return nil
	}

	p.cron.Remove(p.entryID)
	p.schedule()
	p.log.Infof("任务状态轮询间隔已调整为 %v", interval)
	return nil
}

// schedule 注册轮询任务，调用方需持有锁
func (p *Poller) schedule() {
	p.entryID = p.cron.Schedule(cron.Every(p.interval), p.job)
}

// Tick 执行一轮对账：按列表顺序依次查询所有未完成的任务
// 单个任务查询失败只记录日志，下一轮会再次查询
func (p *Poller) Tick(ctx context.Context) {
	for _, task := range p.store.Tasks() {
		if task.Status.IsTerminal() {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		res, err := p.remote.Status(ctx, task.ID)
		if err != nil {
			p.log.Warnf("查询任务状态失败: TaskID=%s, 错误: %v", task.ID, err)
			continue
		}
		if res.Status == task.Status {
			continue
		}
		if res.Status == model.TaskStatusSuccess && res.Result == nil {
			// 成功但没有结果时保持原状态，下一轮重新查询
			p.log.Warnf("任务已成功但后端未返回结果，稍后重试: TaskID=%s", task.ID)
			continue
		}

		changed, err := p.store.Reconcile(task.ID, res.Status, res.Result)
		if errors.Is(err, store.ErrTaskNotFound) {
			p.log.Debugf("任务已被删除，忽略状态更新: TaskID=%s", task.ID)
			continue
		}
		if err != nil {
			p.log.Errorf("更新任务状态失败: TaskID=%s, 错误: %v", task.ID, err)
			continue
		}
		if changed {
			p.log.Infof("任务状态更新: TaskID=%s, %s -> %s", task.ID, task.Status, res.Status)
		}
	}
}
