// Package comm реализует канал связи между агентами в пределах тика.
package comm

// SensorID - зарезервированный идентификатор отправителя для вращающегося наблюдателя.
// Не совпадает ни с одним ID агента.
const SensorID = -1

// Payload - непрозрачное содержимое сообщения
type Payload map[string]interface{}

// Message представляет сообщение с идентификатором отправителя.
// Receive отдаёт каждому получателю свою копию Payload, но значения внутри
// (срезы, вложенные карты) общие для всех получателей тика: только чтение.
type Message struct {
	SenderID int     `json:"sender_id"`
	Payload  Payload `json:"payload"`
}

// Channel хранит упорядоченный журнал сообщений текущего тика.
// Доступ однопоточный: канал изменяет только движок шага.
type Channel struct {
	messages []Message
}

// NewChannel создаёт пустой канал
func NewChannel() *Channel {
	return &Channel{}
}

// Broadcast добавляет сообщение в журнал. Никогда не отказывает и не дедуплицирует.
func (c *Channel) Broadcast(senderID int, payload Payload) {
	c.messages = append(c.messages, Message{SenderID: senderID, Payload: payload})
}

// Receive возвращает в порядке отправки все сообщения, отправитель которых не agentID.
// Агент никогда не получает собственные сообщения.
func (c *Channel) Receive(agentID int) []Message {
	result := make([]Message, 0, len(c.messages))
	for _, msg := range c.messages {
		if msg.SenderID != agentID {
			result = append(result, Message{SenderID: msg.SenderID, Payload: msg.Payload.clone()})
		}
	}
	return result
}

func (p Payload) clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Clear очищает журнал (идемпотентно)
func (c *Channel) Clear() {
	c.messages = c.messages[:0]
}

// Len возвращает количество сообщений в журнале
func (c *Channel) Len() int {
	return len(c.messages)
}
