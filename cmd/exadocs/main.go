// Точка входа ExaDocs — репозиторий учебных материалов с ревью модераторами.
// Команды: serve (HTTP API + обработчик писем), migrate, mailer, export.
package main

func main() {
	Execute()
}
