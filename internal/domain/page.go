package domain

// Page описывает параметры пагинации
type Page struct {
	Limit  int
	Offset int
}

// Normalize подставляет значения по умолчанию и ограничивает лимит сверху
func (p Page) Normalize(defaultLimit, maxLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
