package domain

import "github.com/shopspring/decimal"

// MaxLineQuantity верхняя граница количества одной позиции.
const MaxLineQuantity = 99

// OrderLine одна позиция корзины: товар и количество.
type OrderLine struct {
	ProductID   string
	Name        string
	UnitPrice   decimal.Decimal
	ImageRef    string
	Description string
	// Quantity держится в 1..MaxLineQuantity, пока позиция существует.
	Quantity int
}

// Total возвращает стоимость позиции: цена × количество.
func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart упорядоченный набор позиций. Порядок совпадает с порядком добавления.
// Производные значения (Subtotal, Count) всегда считаются по текущим позициям.
type Cart struct {
	Lines []OrderLine
}

// NewLineFromProduct строит позицию корзины по товару меню.
func NewLineFromProduct(p Product, qty int) OrderLine {
	return OrderLine{
		ProductID:   p.ID,
		Name:        p.Name,
		UnitPrice:   p.Price,
		ImageRef:    p.ImageRef,
		Description: p.Description,
		Quantity:    qty,
	}
}

// AddItem увеличивает количество существующей позиции или добавляет новую в конец.
// qty < 1 трактуется как 1. Если итог превысил бы MaxLineQuantity, корзина
// не меняется и возвращается ErrLineQtyTooLarge.
func (c *Cart) AddItem(p Product, qty int) error {
	if qty < 1 {
		qty = 1
	}
	idx := c.indexOf(p.ID)
	current := 0
	if idx >= 0 {
		current = c.Lines[idx].Quantity
	}
	if qty > MaxLineQuantity-current {
		return ErrLineQtyTooLarge
	}
	if idx >= 0 {
		c.Lines[idx].Quantity += qty
		return nil
	}
	c.Lines = append(c.Lines, NewLineFromProduct(p, qty))
	return nil
}

// UpdateQuantity меняет количество на delta. Отсутствующий id — no-op.
// Изменение, которое вывело бы количество из 1..MaxLineQuantity, игнорируется:
// удалять позицию нужно через RemoveItem. Возвращает true, если корзина изменилась.
func (c *Cart) UpdateQuantity(productID string, delta int) bool {
	idx := c.indexOf(productID)
	if idx < 0 || delta == 0 {
		return false
	}
	current := c.Lines[idx].Quantity
	if delta > MaxLineQuantity-current || delta < 1-current {
		return false
	}
	c.Lines[idx].Quantity = current + delta
	return true
}

// Subtract уменьшает количества на величины из ordered. Позиции, дошедшие до
// нуля, удаляются; позиции, которых нет в ordered, не трогаются.
// Возвращает true, если корзина изменилась.
func (c *Cart) Subtract(ordered []OrderLine) bool {
	if len(ordered) == 0 || len(c.Lines) == 0 {
		return false
	}
	taken := make(map[string]int, len(ordered))
	for _, line := range ordered {
		taken[line.ProductID] += line.Quantity
	}

	changed := false
	kept := c.Lines[:0]
	for _, line := range c.Lines {
		if qty, ok := taken[line.ProductID]; ok && qty > 0 {
			changed = true
			line.Quantity -= qty
			if line.Quantity < 1 {
				continue
			}
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		kept = nil
	}
	c.Lines = kept
	return changed
}

// RemoveItem удаляет позицию. Отсутствующий id — no-op.
func (c *Cart) RemoveItem(productID string) bool {
	idx := c.indexOf(productID)
	if idx < 0 {
		return false
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return true
}

// Clear очищает корзину.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Line возвращает позицию по product id.
func (c *Cart) Line(productID string) (OrderLine, bool) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return OrderLine{}, false
	}
	return c.Lines[idx], true
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Subtotal сумма price × quantity по всем позициям.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Total())
	}
	return total
}

// Count суммарное количество единиц (для бейджа корзины).
func (c *Cart) Count() int {
	count := 0
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

// Snapshot возвращает независимую копию корзины.
func (c *Cart) Snapshot() Cart {
	if len(c.Lines) == 0 {
		return Cart{}
	}
	lines := make([]OrderLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

// ValidateInvariants проверяет инварианты корзины и возвращает список замечаний.
func (c *Cart) ValidateInvariants() []error {
	var errs []error

	seen := make(map[string]struct{}, len(c.Lines))
	for _, line := range c.Lines {
		if line.Quantity < 1 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.Quantity > MaxLineQuantity {
			errs = append(errs, ErrLineQtyTooLarge)
		}
		if line.UnitPrice.IsNegative() {
			errs = append(errs, ErrProductPriceInvalid)
		}
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateLine)
		}
		seen[line.ProductID] = struct{}{}
	}

	return errs
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}
