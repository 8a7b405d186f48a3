package domain

// CartItem — позиция корзины, из которой формируются позиции заказа.
// Корзиной владеет внешний сервис; здесь только контракт данных.
type CartItem struct {
	ProductID      string
	SKU            string
	Name           string
	Qty            int32
	UnitPriceMinor int64
}
