package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/iscada/tabledb/archive"
	"github.com/iscada/tabledb/dispatch"
	"github.com/iscada/tabledb/initializer"
	"github.com/iscada/tabledb/table"
)

func main() {

	configPath := "./config.json"
	rootDir := "./storage"

	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		rootDir = os.Args[2]
	}

	ini, iniErr := initializer.New(configPath, rootDir)
	if iniErr != nil {
		panic(iniErr)
	}

	if startErr := ini.Start(); startErr != nil {
		panic(startErr)
	}
	defer ini.CloseAll()

	for alias, tbl := range ini.Tables() {

		m := dispatch.NewWithTable(tbl, dispatch.ManagerConfig{Workers: 4})

		m.SubmitWriteTask(1, "first_row", 95.5, func(ok bool, id int32) {
			log.Printf("write finished, id=%d ok=%v", id, ok)
		})
		m.WaitForAllTasks()

		m.SubmitReadTask(0, func(ok bool, record table.Record) {
			if !ok {
				log.Printf("read failed")
				return
			}
			log.Printf("record 0: id=%d name=%s score=%v",
				record["id"].IntVal, record["name"].Str(), record["score"].FloatVal)
		})

		backupPath := filepath.Join(rootDir, "backups", archive.BackupName(alias))
		m.SubmitBackupTask(backupPath, func(ok bool, path string) {
			log.Printf("backup finished, path=%s ok=%v", path, ok)
		})

		m.WaitForAllTasks()
		m.Shutdown()

		log.Printf("table %s holds %d records", alias, tbl.RecordCount())
	}
}
