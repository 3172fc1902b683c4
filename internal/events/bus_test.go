package events

import "testing"

func TestReference_DispatchOrder(t *testing.T) {
	b := NewReference()
	var order []int
	b.Listen(TagPublish, func(Event) { order = append(order, 1) })
	b.Listen(TagPublish, func(Event) { order = append(order, 2) })
	b.Listen(TagSubscribe, func(Event) { order = append(order, 99) })

	b.Dispatch(PublishEvent{Topic: "a"})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected handler order: %v", order)
	}
}

func TestReference_NoHandlersIsNoop(t *testing.T) {
	b := NewReference()
	b.Dispatch(PublishEvent{Topic: "a"}) // must not panic
}
