//go:build ignore

// generate_hash.go — утилита для генерации Argon2id хеша пароля администратора.
// Запуск: go run scripts/generate_hash.go ваш_пароль
// Проверка: go run scripts/generate_hash.go ваш_пароль '<хеш>'
//
// Результат вставьте в .env как ADMIN_PASSWORD_HASH.
package main

import (
	"fmt"
	"os"

	"serotonyl.ru/brand-votes/internal/features/admin"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Использование: go run scripts/generate_hash.go <пароль> [хеш]")
		os.Exit(1)
	}

	password := os.Args[1]

	if len(os.Args) > 2 {
		if admin.VerifyPassword(password, os.Args[2]) {
			fmt.Println("Пароль совпадает с хешем")
			return
		}
		fmt.Println("Пароль НЕ совпадает с хешем")
		os.Exit(1)
	}

	hash, err := admin.HashPassword(password)
	if err != nil {
		fmt.Printf("Ошибка генерации хеша: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Хеш пароля (вставьте в .env как ADMIN_PASSWORD_HASH):")
	fmt.Println(hash)
}
