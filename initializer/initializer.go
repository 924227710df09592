// Package initializer consumes the configuration document and brings every
// declared table up: an existing file is loaded and validated against its
// declared fields, a missing one is created. Invalid or mismatching entries
// are skipped, not fatal.
package initializer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/iscada/tabledb/table"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Initializer struct {
	configPath string
	rootDir    string

	tables map[string]*table.DynamicTable
	locker sync.Mutex

	loadGroup singleflight.Group
}

func New(configPath, rootDir string) (*Initializer, error) {

	if _, statErr := os.Stat(rootDir); statErr != nil {
		if mkdirErr := os.MkdirAll(rootDir, 0755); mkdirErr != nil {
			return nil, fmt.Errorf("unable to create database directory %s: %s", rootDir, mkdirErr.Error())
		}
		slog.Info("created database directory", "path", rootDir)
	}

	return &Initializer{
		configPath: configPath,
		rootDir:    rootDir,
		tables:     map[string]*table.DynamicTable{},
	}, nil
}

// Start loads the configuration and brings the declared tables up
// concurrently. It succeeds when at least one table came up.
func (ini *Initializer) Start() error {

	config, configErr := LoadConfig(ini.configPath)
	if configErr != nil {
		return configErr
	}

	var group errgroup.Group

	for _, spec := range config.Tables {
		group.Go(func() error {
			if bringUpErr := ini.bringUp(spec); bringUpErr != nil {
				slog.Warn("table skipped", "table", spec.Name, "alias", spec.Alias, "err", bringUpErr.Error())
			}
			// a bad entry never fails the whole startup
			return nil
		})
	}

	group.Wait()

	if len(ini.tables) == 0 {
		return fmt.Errorf("no tables came up from %s", ini.configPath)
	}

	return nil
}

// bringUp loads or creates one table. Duplicate aliases collapse into one
// load through the singleflight group.
func (ini *Initializer) bringUp(spec TableSpec) error {

	if spec.Name == "" || spec.Alias == "" {
		return fmt.Errorf("table name or alias is empty")
	}

	configFields, fieldsErr := spec.fieldDefs()
	if fieldsErr != nil {
		return fieldsErr
	}

	_, bringUpErr, _ := ini.loadGroup.Do(spec.Alias, func() (any, error) {

		ini.locker.Lock()
		_, alreadyUp := ini.tables[spec.Alias]
		ini.locker.Unlock()
		if alreadyUp {
			return nil, nil
		}

		tablePath := filepath.Join(ini.rootDir, spec.Alias)

		tbl := table.NewDynamicTable()

		if _, statErr := os.Stat(tablePath); statErr == nil {

			if loadErr := tbl.Load(tablePath); loadErr != nil {
				return nil, loadErr
			}

			if validateErr := validateExistingTable(tbl, configFields); validateErr != nil {
				tbl.Close()
				return nil, validateErr
			}

			slog.Info("table loaded and validated", "table", spec.Name, "alias", spec.Alias)
		} else {

			if initErr := tbl.Init(tablePath, configFields); initErr != nil {
				return nil, initErr
			}

			slog.Info("table initialized", "table", spec.Name, "alias", spec.Alias)
		}

		ini.locker.Lock()
		ini.tables[spec.Alias] = tbl
		ini.locker.Unlock()

		return tbl, nil
	})

	return bringUpErr
}

// validateExistingTable requires element-for-element equality between the
// on-disk header and the configured fields: order, name, type, valueLen.
func validateExistingTable(tbl *table.DynamicTable, configFields []table.FieldDef) error {

	header := tbl.Header()

	if len(header.Fields) != len(configFields) {
		return fmt.Errorf("%w: field count config=%d actual=%d",
			table.ErrSchemaMismatch, len(configFields), len(header.Fields))
	}

	for i, configField := range configFields {
		actualField := header.Fields[i]
		if !configField.Equal(actualField) {
			return fmt.Errorf("%w: field %d config=%+v actual=%+v",
				table.ErrSchemaMismatch, i, configField, actualField)
		}
	}

	return nil
}

// Tables returns the alias → table map of everything that came up.
func (ini *Initializer) Tables() map[string]*table.DynamicTable {
	ini.locker.Lock()
	defer ini.locker.Unlock()

	result := make(map[string]*table.DynamicTable, len(ini.tables))
	for alias, tbl := range ini.tables {
		result[alias] = tbl
	}
	return result
}

func (ini *Initializer) Table(alias string) *table.DynamicTable {
	ini.locker.Lock()
	defer ini.locker.Unlock()

	return ini.tables[alias]
}

// CloseAll shuts every loaded table down, flushing used_size.
func (ini *Initializer) CloseAll() {
	ini.locker.Lock()
	defer ini.locker.Unlock()

	for alias, tbl := range ini.tables {
		tbl.Close()
		slog.Info("table closed", "alias", alias)
	}
}
