package sysmon

import "testing"

func TestParseLoadAverages(t *testing.T) {
	out := " 10:02:11 up 12 days,  3:44,  2 users,  load average: 0.52, 0.58, 0.59\n"
	load := ParseLoadAverages(out)
	if load == nil {
		t.Fatal("ParseLoadAverages returned nil")
	}
	if load.One != 0.52 || load.Five != 0.58 || load.Fifteen != 0.59 {
		t.Errorf("load = %+v", load)
	}
}

func TestParseLoadAverages_NoMatch(t *testing.T) {
	if got := ParseLoadAverages("garbage"); got != nil {
		t.Errorf("ParseLoadAverages(garbage) = %+v, want nil", got)
	}
}

const freeOutput = `              total        used        free      shared  buff/cache   available
Mem:    16622518272  5501231104  3838038016   536870912  7283249152 10276044800
Swap:    2147479552   268435456  1879044096
`

func TestParseFree(t *testing.T) {
	mem, swap := ParseFree(freeOutput)

	if mem == nil || swap == nil {
		t.Fatalf("mem = %v, swap = %v", mem, swap)
	}
	if mem.Total != 16622518272 {
		t.Errorf("mem.Total = %d", mem.Total)
	}
	if mem.Available != 10276044800 {
		t.Errorf("mem.Available = %d", mem.Available)
	}
	if swap.Used != 268435456 {
		t.Errorf("swap.Used = %d", swap.Used)
	}
}

const dfOutput = `Filesystem     1024-blocks      Used Available Capacity Mounted on
/dev/nvme0n1p2   487652352 102938172 359865732      23% /
tmpfs              8116464         0   8116464       0% /dev/shm
/dev/nvme0n1p1      523244      6180    517064       2% /boot/efi
`

func TestParseDF(t *testing.T) {
	fss := ParseDF(dfOutput)

	if len(fss) != 3 {
		t.Fatalf("got %d filesystems, want 3", len(fss))
	}
	root := fss[0]
	if root.Device != "/dev/nvme0n1p2" || root.Mountpoint != "/" {
		t.Errorf("root = %+v", root)
	}
	if root.TotalKB != 487652352 || root.UsePercent != 23 {
		t.Errorf("root = %+v", root)
	}
}

const psOutput = `USER         PID %CPU %MEM    VSZ   RSS TTY      STAT START   TIME COMMAND
root           1  0.1  0.2 169452 11234 ?        Ss   Jan01   5:01 /sbin/init splash
www         1234 12.5  1.8 812340 98765 ?        Sl   08:00  42:17 nginx: worker process
postgres    2345  3.2  4.1 432100 212345 ?       Ss   08:00  11:03 postgres: checkpointer
`

func TestParsePS(t *testing.T) {
	procs := ParsePS(psOutput)

	if len(procs) != 3 {
		t.Fatalf("got %d processes, want 3", len(procs))
	}
	if procs[0].PID != 1 || procs[0].User != "root" {
		t.Errorf("proc 0 = %+v", procs[0])
	}
	if procs[0].Command != "/sbin/init splash" {
		t.Errorf("proc 0 command = %q", procs[0].Command)
	}
	if procs[1].CPUPercent != 12.5 {
		t.Errorf("proc 1 cpu = %v", procs[1].CPUPercent)
	}
}
