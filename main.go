package main

import (
	"flag"
	"fmt"

	"github.com/go-innodb/storedb/logger"
	"github.com/go-innodb/storedb/server/conf"
	"github.com/go-innodb/storedb/server/innodb/btree"
	"github.com/go-innodb/storedb/server/innodb/buffer_pool"
	"github.com/go-innodb/storedb/server/innodb/manager"
	"github.com/go-innodb/storedb/server/innodb/mtr"
	"github.com/go-innodb/storedb/server/innodb/trx"
	"github.com/go-innodb/storedb/server/innodb/undo"
)

const help = `
******************************************************************************************

 __   ____  __        _____  ____  _          _____ ______ _______      ________ _____
 \ \ / /  \/  |      / ____|/ __ \| |        / ____|  ____|  __ \ \    / /  ____|  __ \
  \ V /| \  / |_   _| (___ | |  | | |  _____| (___ | |__  | |__) \ \  / /| |__  | |__) |
   > < | |\/| | | | |\___ \| |  | | | |______\___ \|  __| |  _  / \ \/ / |  __| |  _  /
  / . \| |  | | |_| |____) | |__| | |____    ____) | |____| | \ \  \  /  | |____| | \ \
 /_/ \_\_|  |_|\__, |_____/ \___\_\______|  |_____/|______|_|  \_\  \/   |______|_|  \_\
                __/ |
               |___/
******************************************************************************************
*帮助:
*1. -- help
*2. -- configPath        指定my.ini配置文件
*3. -- kernelConfigPath  指定kernel.toml调优文件
******************************************************************************************
`

// bootKernel wires the persistent-cursor / mini-transaction / undo core up
// against an in-memory tree and trx-sys header - the same in-memory
// stand-ins the package tests use in place of the external buffer pool and
// FSP layer - and runs one insert-then-rollback cycle end to end, so a
// fresh checkout has something runnable that proves the wiring, not just
// the unit tests.
func bootKernel(kcfg *manager.KernelConfig) {
	pool := buffer_pool.NewKernelPool(kcfg.BufferPoolFrames, 1-kcfg.OldRatio, kcfg.OldRatio, kcfg.OldThresholdMs,
		func(spaceID, pageNo uint32) (*btree.Page, error) {
			return btree.NewPage(spaceID, pageNo), nil
		})
	_ = pool // handed to the frame allocator once the external buffer pool is wired in

	tree := btree.NewTree(btree.LexIndex{}, 0)

	header := trx.NewMemHeaderPage(0)
	sys := trx.NewSys(header)
	newMtr := func() *mtr.Mtr { return mtr.Start(nil, nil) }

	trxID := sys.GetNewTrxID(newMtr)
	t := &trx.Trx{ID: trxID, RollLimit: 0}
	logger.Infof("kernel: allocated trx id %d (rollback segments configured: %d)", trxID, kcfg.RollbackSegments)

	rp := undo.RollPtr{IsInsert: true, RsegID: 1, PageNo: 10, Offset: 0}
	tree.InsertUserRec(&btree.Record{Kind: btree.RecUser, Key: []byte{1}, RollPtr: rp.Pack()})

	log := undo.NewMemLog()
	log.Push(trxID, &undo.Rec{UndoNo: 1, RollPtr: rp, Ref: []byte{1}})

	node := undo.NewNode(t, log, tree, btree.LexIndex{}, 0)
	outcome, err := node.Step(newMtr)
	if err != nil {
		logger.Errorf("kernel: undo step failed: %s", err.Error())
		return
	}
	logger.Infof("kernel: rolled back trx %d, outcome=%v, leaf record count=%d", trxID, outcome,
		tree.PageByNo(tree.LeftmostLeafNo()).NUserRecs())
}

func main() {
	fmt.Println("Starting storedb kernel...")

	var configPath, kernelConfigPath string
	flag.StringVar(&configPath, "configPath", "", "配置文件路径")
	flag.StringVar(&kernelConfigPath, "kernelConfigPath", "kernel.toml", "kernel调优文件路径")
	flag.Parse()

	args := &conf.CommandLineArgs{ConfigPath: configPath}
	config := conf.NewCfg().Load(args)

	logConfig := logger.LogConfig{
		ErrorLogPath: config.LogError,
		InfoLogPath:  config.LogInfos,
		LogLevel:     config.LogLevel,
	}
	if err := logger.InitLogger(logConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logger.Infof("storedb kernel starting, innodb_buffer_pool_size=%d innodb_page_size=%d",
		config.InnodbBufferPoolSize, config.InnodbPageSize)

	kcfg, err := manager.LoadKernelConfig(kernelConfigPath)
	if err != nil {
		logger.Errorf("failed to load kernel config %q: %s", kernelConfigPath, err.Error())
		panic(err)
	}
	kcfg.Validate()
	logger.Infof("kernel config: buffer_pool_frames=%d old_ratio=%.2f old_threshold_ms=%d write_margin=%d rollback_segments=%d",
		kcfg.BufferPoolFrames, kcfg.OldRatio, kcfg.OldThresholdMs, kcfg.TrxSysWriteMargin, kcfg.RollbackSegments)

	bootKernel(kcfg)
	logger.Info("storedb kernel shutdown complete")
}
