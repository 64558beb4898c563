// messages.go

// User-facing message catalog. Keys are the English text; every key must have
// a Japanese entry in ja below.
package i18n

// Response messages.
const (
	MsgValidationFailed = "The given data was invalid."
	MsgUnauthenticated  = "Unauthenticated."
	MsgInvalidCreds     = "Invalid email or password."
	MsgForbidden        = "You do not have permission to access this resource."
	MsgNotFound         = "Resource not found."
	MsgTooManyRequests  = "Too many requests."
	MsgInternal         = "An unexpected error occurred."

	MsgRegistered    = "Registration successful"
	MsgLoggedIn      = "Login successful"
	MsgLoggedOut     = "Logged out successfully"
	MsgAuthenticated = "Authenticated"

	MsgTodoCreated = "Todo created successfully"
	MsgTodoUpdated = "Todo updated successfully"
	MsgTodoDeleted = "Todo deleted successfully"
)

// Field validation messages.
const (
	MsgBodyInvalidJSON = "The request body must be valid JSON."

	MsgNameRequired = "The name field is required."
	MsgNameTooLong  = "The name may not be greater than 255 characters."

	MsgEmailRequired = "The email field is required."
	MsgEmailInvalid  = "The email must be a valid email address."
	MsgEmailTooLong  = "The email may not be greater than 255 characters."
	MsgEmailTaken    = "The email has already been taken."

	MsgPasswordRequired = "The password field is required."
	MsgPasswordTooShort = "The password must be at least 8 characters."
	MsgPasswordTooLong  = "The password may not be greater than 128 characters."
	MsgPasswordMismatch = "The password confirmation does not match."

	MsgTitleRequired  = "The title field is required."
	MsgTitleNotString = "The title must be a string."
	MsgTitleTooLong   = "The title may not be greater than 255 characters."

	MsgDescNotString    = "The description must be a string."
	MsgDescTooLong      = "The description may not be greater than 1000 characters."
	MsgCompletedNotBool = "The completed field must be true or false."

	// List query parameters.
	MsgPageInvalid     = "The page must be a positive integer."
	MsgLimitInvalid    = "The limit must be a positive integer."
	MsgPerPageInvalid  = "The per_page must be a positive integer."
	MsgCompletedFilter = "The completed filter must be true or false."
)

var ja = map[string]string{
	MsgValidationFailed: "入力内容に誤りがあります",
	MsgUnauthenticated:  "認証が必要です",
	MsgInvalidCreds:     "メールアドレスまたはパスワードが正しくありません",
	MsgForbidden:        "このリソースにアクセスする権限がありません",
	MsgNotFound:         "リソースが見つかりません",
	MsgTooManyRequests:  "リクエストが多すぎます",
	MsgInternal:         "予期しないエラーが発生しました",

	MsgRegistered:    "ユーザー登録が完了しました",
	MsgLoggedIn:      "ログインに成功しました",
	MsgLoggedOut:     "ログアウトしました",
	MsgAuthenticated: "認証されています",

	MsgTodoCreated: "ToDoが正常に作成されました",
	MsgTodoUpdated: "ToDoが正常に更新されました",
	MsgTodoDeleted: "ToDoが正常に削除されました",

	MsgBodyInvalidJSON: "リクエストボディは有効なJSONである必要があります",

	MsgNameRequired: "名前は必須です",
	MsgNameTooLong:  "名前は255文字以内で入力してください",

	MsgEmailRequired: "メールアドレスは必須です",
	MsgEmailInvalid:  "有効なメールアドレスを入力してください",
	MsgEmailTooLong:  "メールアドレスは255文字以内で入力してください",
	MsgEmailTaken:    "このメールアドレスは既に使用されています",

	MsgPasswordRequired: "パスワードは必須です",
	MsgPasswordTooShort: "パスワードは8文字以上で入力してください",
	MsgPasswordTooLong:  "パスワードは128文字以内で入力してください",
	MsgPasswordMismatch: "パスワードが一致しません",
	MsgTitleRequired:    "タイトルは必須です",
	MsgTitleNotString:   "タイトルは文字列で入力してください",
	MsgTitleTooLong:     "タイトルは255文字以内で入力してください",
	MsgDescNotString:    "説明は文字列で入力してください",
	MsgDescTooLong:      "説明は1000文字以内で入力してください",
	MsgCompletedNotBool: "完了状態はtrueまたはfalseで指定してください",
	MsgPageInvalid:      "ページは正の整数で指定してください",
	MsgLimitInvalid:     "件数は正の整数で指定してください",
	MsgPerPageInvalid:   "件数は正の整数で指定してください",
	MsgCompletedFilter:  "完了フィルターはtrueまたはfalseで指定してください",
}
