package main

import "testing"

func TestRootCmd_Subcommands(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "mailer", "export"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{name})
			if err != nil {
				t.Fatalf("команда %s не найдена: %v", name, err)
			}
			if cmd.Name() != name {
				t.Errorf("Find(%s) вернул %s", name, cmd.Name())
			}
		})
	}
}

func TestRootCmd_Flags(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("нет глобального флага --config")
	}
	out := exportCmd.Flags().Lookup("out")
	if out == nil {
		t.Fatal("нет флага --out у export")
	}
	if out.Shorthand != "o" || out.DefValue != "exadocs-files.xlsx" {
		t.Errorf("--out: shorthand=%q default=%q", out.Shorthand, out.DefValue)
	}
}
