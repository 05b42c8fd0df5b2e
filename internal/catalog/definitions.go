package catalog

import (
	"github.com/asahina/tobira/internal/entities"
)

func text(en, ja string) map[string]string {
	return map[string]string{"en": en, "ja": ja}
}

// Default returns the permission catalog for the site: the admin console
// surfaces (dashboard, users, roles, blog, FAQ, dealers, contact inbox,
// media, settings) and the customer-facing account surface.
//
// Names are load-bearing: the persisted store is keyed by them, so renaming a
// permission here is a prune+insert, not a rename.
func Default() *Catalog {
	return New(
		// Panel surfaces
		entities.NewLayoutPermission("admin", entities.TypeAdmin,
			text("Admin panel access", "管理画面へのアクセス"),
			text("Enter the administrative console", "管理コンソールに入る")),
		entities.NewLayoutPermission("user", entities.TypeUser,
			text("Account panel access", "アカウント画面へのアクセス"),
			text("Enter the customer account area", "顧客アカウント領域に入る")),

		// Dashboard
		entities.NewViewPermission("admin", "dashboard", entities.TypeAdmin,
			text("View dashboard", "ダッシュボードの閲覧"),
			text("Read the admin dashboard page", "管理ダッシュボードの閲覧")).
			WithDependencies("admin.layout"),

		// Users
		entities.NewViewPermission("admin", "users", entities.TypeAdmin,
			text("View users", "ユーザー一覧の閲覧"),
			text("Read the user management page", "ユーザー管理ページの閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("users", entities.ActionCreate, entities.TypeAdmin,
			text("Create users", "ユーザーの作成"),
			text("Create user accounts", "ユーザーアカウントの作成")).
			WithDependencies("admin.users.view"),
		entities.NewFunctionPermission("users", entities.ActionUpdate, entities.TypeAdmin,
			text("Update users", "ユーザーの更新"),
			text("Edit user accounts and role assignment", "ユーザーアカウントとロール割当の編集")).
			WithDependencies("admin.users.view"),
		entities.NewFunctionPermission("users", entities.ActionDelete, entities.TypeAdmin,
			text("Delete users", "ユーザーの削除"),
			text("Remove user accounts", "ユーザーアカウントの削除")).
			WithDependencies("admin.users.view"),

		// Roles and permissions
		entities.NewViewPermission("admin", "roles", entities.TypeAdmin,
			text("View roles", "ロール一覧の閲覧"),
			text("Read the role management page", "ロール管理ページの閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("roles", entities.ActionCreate, entities.TypeAdmin,
			text("Create roles", "ロールの作成"),
			text("Create custom roles", "カスタムロールの作成")).
			WithDependencies("admin.roles.view"),
		entities.NewFunctionPermission("roles", entities.ActionUpdate, entities.TypeAdmin,
			text("Update roles", "ロールの更新"),
			text("Edit role names and permission grants", "ロール名と権限付与の編集")).
			WithDependencies("admin.roles.view"),
		entities.NewFunctionPermission("roles", entities.ActionDelete, entities.TypeAdmin,
			text("Delete roles", "ロールの削除"),
			text("Delete custom roles", "カスタムロールの削除")).
			WithDependencies("admin.roles.view"),
		entities.NewViewPermission("admin", "permissions", entities.TypeAdmin,
			text("View permissions", "権限一覧の閲覧"),
			text("Read the permission catalog page", "権限カタログページの閲覧")).
			WithDependencies("admin.layout"),

		// Blog
		entities.NewViewPermission("admin", "posts", entities.TypeAdmin,
			text("View posts", "記事一覧の閲覧"),
			text("Read the blog management page", "ブログ管理ページの閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("posts", entities.ActionCreate, entities.TypeAdmin,
			text("Create posts", "記事の作成"),
			text("Publish blog posts", "ブログ記事の公開")).
			WithDependencies("admin.posts.view"),
		entities.NewFunctionPermission("posts", entities.ActionUpdate, entities.TypeAdmin,
			text("Update posts", "記事の更新"),
			text("Edit blog posts", "ブログ記事の編集")).
			WithDependencies("admin.posts.view"),
		entities.NewFunctionPermission("posts", entities.ActionDelete, entities.TypeAdmin,
			text("Delete posts", "記事の削除"),
			text("Remove blog posts", "ブログ記事の削除")).
			WithDependencies("admin.posts.view"),

		// FAQ
		entities.NewViewPermission("admin", "faqs", entities.TypeAdmin,
			text("View FAQs", "FAQ一覧の閲覧"),
			text("Read the FAQ management page", "FAQ管理ページの閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("faqs", entities.ActionManage, entities.TypeAdmin,
			text("Manage FAQs", "FAQの管理"),
			text("Create, edit, and remove FAQ entries", "FAQ項目の作成・編集・削除")).
			WithDependencies("admin.faqs.view"),

		// Dealers
		entities.NewViewPermission("admin", "dealers", entities.TypeAdmin,
			text("View dealers", "ディーラー一覧の閲覧"),
			text("Read the dealership management page", "ディーラー管理ページの閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("dealers", entities.ActionCreate, entities.TypeAdmin,
			text("Create dealers", "ディーラーの作成"),
			text("Register dealerships", "ディーラーの登録")).
			WithDependencies("admin.dealers.view"),
		entities.NewFunctionPermission("dealers", entities.ActionUpdate, entities.TypeAdmin,
			text("Update dealers", "ディーラーの更新"),
			text("Edit dealership records", "ディーラー情報の編集")).
			WithDependencies("admin.dealers.view"),
		entities.NewFunctionPermission("dealers", entities.ActionDelete, entities.TypeAdmin,
			text("Delete dealers", "ディーラーの削除"),
			text("Remove dealership records", "ディーラー情報の削除")).
			WithDependencies("admin.dealers.view"),

		// Contact submissions
		entities.NewViewPermission("admin", "contacts", entities.TypeAdmin,
			text("View contact submissions", "問い合わせ一覧の閲覧"),
			text("Read the contact inbox page", "問い合わせ受信箱の閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("contacts", entities.ActionRead, entities.TypeAdmin,
			text("Open contact submissions", "問い合わせ詳細の閲覧"),
			text("Open individual contact submissions", "個別の問い合わせを開く")).
			WithDependencies("admin.contacts.view"),
		entities.NewFunctionPermission("contacts", entities.ActionDelete, entities.TypeAdmin,
			text("Delete contact submissions", "問い合わせの削除"),
			text("Remove contact submissions", "問い合わせの削除")).
			WithDependencies("admin.contacts.view"),

		// Media
		entities.NewViewPermission("admin", "media", entities.TypeAdmin,
			text("View media library", "メディア一覧の閲覧"),
			text("Read the media library page", "メディアライブラリの閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("media", entities.ActionCreate, entities.TypeAdmin,
			text("Upload media", "メディアのアップロード"),
			text("Upload files to the media library", "メディアライブラリへのアップロード")).
			WithDependencies("admin.media.view"),
		entities.NewFunctionPermission("media", entities.ActionDelete, entities.TypeAdmin,
			text("Delete media", "メディアの削除"),
			text("Remove files from the media library", "メディアライブラリからの削除")).
			WithDependencies("admin.media.view"),

		// Site settings
		entities.NewViewPermission("admin", "settings", entities.TypeAdmin,
			text("View settings", "設定の閲覧"),
			text("Read the site settings page", "サイト設定ページの閲覧")).
			WithDependencies("admin.layout"),
		entities.NewFunctionPermission("settings", entities.ActionUpdate, entities.TypeAdmin,
			text("Update settings", "設定の更新"),
			text("Change site settings", "サイト設定の変更")).
			WithDependencies("admin.settings.view"),

		// Customer account surface
		entities.NewViewPermission("user", "profile", entities.TypeUser,
			text("View own profile", "プロフィールの閲覧"),
			text("Read the account profile page", "アカウントプロフィールの閲覧")).
			WithDependencies("user.layout"),
		entities.NewFunctionPermission("profile", entities.ActionUpdate, entities.TypeUser,
			text("Update own profile", "プロフィールの更新"),
			text("Edit the account profile", "アカウントプロフィールの編集")).
			WithDependencies("user.profile.view"),
	)
}
