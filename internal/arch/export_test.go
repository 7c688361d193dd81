package arch

func MockGOARCH(v string) (restore func()) {
	saved := goarch
	goarch = v
	return func() {
		goarch = saved
	}
}
