package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/tapp/internal/adapters/mq/queue"
	"github.com/okian/tapp/internal/adapters/mq/worker"
	"github.com/okian/tapp/internal/domain/match"
	logging "github.com/okian/tapp/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	envelopes chan queue.Envelope
}

func newMockQueue() *mockQueue {
	return &mockQueue{envelopes: make(chan queue.Envelope, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Envelope {
	return mq.envelopes
}

func (mq *mockQueue) send(cmd match.Command) queue.Envelope {
	env := queue.NewEnvelope(cmd)
	mq.envelopes <- env
	return env
}

func await(env queue.Envelope) queue.Reply {
	select {
	case r := <-env.Reply():
		return r
	case <-time.After(time.Second):
		return queue.Reply{Err: errors.New("no reply")}
	}
}

func staged(utorid string) match.Command {
	on := true
	hours := 54.0
	return match.UpsertCommand{Update: match.Update{
		PositionCode:   "CSC108",
		Utorid:         utorid,
		StagedAssigned: &on,
		HoursAssigned:  &hours,
	}}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over an empty store", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		store := match.NewStore()
		w := worker.NewInMemoryWorker(q, store, worker.WithName("test-dispatcher"), worker.WithJournal(true))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When an upsert is dispatched", func() {
			reply := await(q.send(staged("a")))

			convey.Convey("Then it is applied and answered", func() {
				convey.So(reply.Err, convey.ShouldBeNil)
				convey.So(reply.Result.Entries, convey.ShouldHaveLength, 1)
				convey.So(reply.Result.Version, convey.ShouldEqual, 1)
				_, ok := store.Get("CSC108|a")
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a command fails", func() {
			reply := await(q.send(match.UpsertCommand{Update: match.Update{Utorid: "a"}}))

			convey.Convey("Then the error is returned and not journaled", func() {
				convey.So(errors.Is(reply.Err, match.ErrInvalidKey), convey.ShouldBeTrue)
				convey.So(w.Journal(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When many commands are dispatched", func() {
			envs := []queue.Envelope{
				q.send(staged("a")),
				q.send(staged("b")),
				q.send(match.RemoveCommand{Keys: []string{"CSC108|a"}}),
				q.send(staged("c")),
			}
			var last queue.Reply
			for _, env := range envs {
				last = await(env)
			}

			convey.Convey("Then they apply in order and the journal replays to the same state", func() {
				convey.So(last.Err, convey.ShouldBeNil)
				convey.So(last.Result.Version, convey.ShouldEqual, 4)

				rebuilt := match.NewStore()
				_, err := match.Replay(rebuilt, w.Journal())
				convey.So(err, convey.ShouldBeNil)
				convey.So(rebuilt.List(), convey.ShouldResemble, store.List())
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then Done is closed and a second shutdown is a no-op", func() {
				convey.So(err, convey.ShouldBeNil)
				_, open := <-w.Done()
				convey.So(open, convey.ShouldBeFalse)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose queue is closed", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		store := match.NewStore()
		env := queue.NewEnvelope(staged("a"))
		convey.So(q.Enqueue(context.Background(), env), convey.ShouldBeNil)
		convey.So(q.Close(), convey.ShouldBeNil)

		w := worker.NewInMemoryWorker(q, store)
		go w.Run(context.Background())

		convey.Convey("Then it drains pending commands and stops", func() {
			convey.So(await(env).Err, convey.ShouldBeNil)
			select {
			case <-w.Done():
			case <-time.After(time.Second):
				convey.So("worker did not stop", convey.ShouldBeEmpty)
			}
		})
	})
}
