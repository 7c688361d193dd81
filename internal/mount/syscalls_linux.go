package mount

import (
	"golang.org/x/sys/unix"
)

type hostSyscalls struct{}

// HostSyscalls performs real mount(2) and umount(2) calls.
func HostSyscalls() Syscalls {
	return hostSyscalls{}
}

func (hostSyscalls) BindMount(source, target string) error {
	return unix.Mount(source, target, "", unix.MS_BIND, "")
}

func (hostSyscalls) Unmount(target string) error {
	// lazy detach so a process lingering in the chroot does not keep the
	// host pseudo filesystems pinned
	return unix.Unmount(target, unix.MNT_DETACH)
}
