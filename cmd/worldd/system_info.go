package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/timson/worlddb/storage"
)

const (
	version = "0.1.0"
	logo    = `
                    _     _     _ _
 __      _____  _ __| | __| | __| | |__
 \ \ /\ / / _ \| '__| |/ _' |/ _' | '_ \
  \ V  V / (_) | |  | | (_| | (_| | |_) |
   \_/\_/ \___/|_|  |_|\__,_|\__,_|_.__/
`
)

var (
	pastelColor = color.RGB(95, 175, 255)
	grayColor   = color.RGB(138, 138, 138)
	lightGreen  = color.RGB(197, 255, 167)
)

func printLogo(version string) {
	_, _ = pastelColor.Print(logo)
	_, _ = pastelColor.Printf("\nworlddb Version %s\n", version)
}

func printSystemInfo() {
	arch, _ := host.Info()
	cores, _ := cpu.Counts(false)
	threads, _ := cpu.Counts(true)
	vmem, _ := mem.VirtualMemory()
	cwd, _ := os.Getwd()
	usage, _ := disk.Usage(cwd)

	kernelArch := "unknown"
	if arch != nil {
		kernelArch = arch.KernelArch
	}
	fmt.Printf("\n%s %s | %s %s | %s %s \n",
		grayColor.Sprint("Arch:"), pastelColor.Sprint(kernelArch),
		grayColor.Sprint("Cores:"), pastelColor.Sprint(cores),
		grayColor.Sprint("Threads:"), pastelColor.Sprint(threads))

	if vmem != nil {
		fmt.Printf("%s %s total / %s free\n",
			grayColor.Sprint("Mem: "), pastelColor.Sprintf("%.1fGB", float64(vmem.Total)/1e9),
			lightGreen.Sprintf("%.1fGB", float64(vmem.Free)/1e9))
	}
	if usage != nil {
		fmt.Printf("%s %s total / %s free @ %s\n",
			grayColor.Sprint("Disk:"), pastelColor.Sprintf("%.1fGB", float64(usage.Total)/1e9),
			lightGreen.Sprintf("%.1fGB", float64(usage.Free)/1e9), pastelColor.Sprint(cwd))
	}
}

func printDatabaseInfo(db *storage.DB, collections int) {
	stat := db.Stat()
	fmt.Printf("%s %s | %s %s | %s %s\n\n",
		grayColor.Sprint("Page size:"), pastelColor.Sprint(stat.PageSize),
		grayColor.Sprint("Pages:"), pastelColor.Sprint(stat.LastPageID),
		grayColor.Sprint("Collections:"), lightGreen.Sprint(collections))
}
