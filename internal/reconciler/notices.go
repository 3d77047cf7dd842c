package reconciler

type NoticeLevel string

const NoticeWarning NoticeLevel = "warning"

// Notice is a transient, non-blocking message for the shopper.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

const (
	NoticeLoadFailed        = "فشل تحميل السلة"
	NoticeAddLocalOnly      = "فشل إضافة المنتج، تمت الإضافة محلياً فقط"
	NoticeQuantityLocalOnly = "فشل حفظ الكمية، تم التحديث محلياً فقط"
	NoticeRemoveLocalOnly   = "فشل حذف المنتج، تم الحذف محلياً فقط"
	NoticeClearLocalOnly    = "فشل تفريغ السلة، تم التفريغ محلياً فقط"
)
