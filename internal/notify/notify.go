package notify

import "log"

// Notifier доставляет текстовое уведомление одному пользователю.
// Реализация — WebSocket-хаб (internal/ws); в тестах подменяется заглушкой.
type Notifier interface {
	Notify(userID int64, text string) error
}

// Result — итог рассылки по списку получателей.
type Result struct {
	Delivered int
	Failed    int
}

// Fanout рассылает текст всем получателям. Рассылка best-effort: сбой доставки
// одному получателю логируется и считается, но не прерывает цикл.
func Fanout(n Notifier, userIDs []int64, text string) Result {
	var res Result
	for _, id := range userIDs {
		if err := n.Notify(id, text); err != nil {
			log.Printf("Не удалось доставить уведомление пользователю %d: %v", id, err)
			res.Failed++
			continue
		}
		res.Delivered++
	}
	return res
}
